package nlu

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"voicebot-service/internal/common/logger"
)

// ParseCache is an optional read-through cache of NLU results keyed by a
// transcript hash. Repeated transcripts skip re-parsing and, more
// importantly, repeated LLM fallback calls. Failures are logged and treated
// as misses.
type ParseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewParseCache(client *redis.Client, ttl time.Duration, log logger.Logger) *ParseCache {
	return &ParseCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{
			"component": "parse-cache",
		}),
	}
}

func cacheKey(transcript string) string {
	sum := sha256.Sum256([]byte(transcript))
	return "nlu:" + hex.EncodeToString(sum[:])
}

// Get returns the cached result for a transcript, or false on a miss.
func (c *ParseCache) Get(ctx context.Context, transcript string) (*Result, bool) {
	val, err := c.client.Get(ctx, cacheKey(transcript)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, false
	}

	var result Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		c.logger.Warn("cache entry corrupt, ignoring", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}
	return &result, true
}

// Put stores a result with the configured TTL, best-effort.
func (c *ParseCache) Put(ctx context.Context, transcript string, result *Result) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(transcript), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
