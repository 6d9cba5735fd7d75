// Package analytics appends one JSON line per handled transcript to a local
// log file. Recording is best effort: a write failure is logged and never
// fails the request that produced it.
package analytics

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	apperrors "voicebot-service/internal/common/errors"
	"voicebot-service/internal/common/logger"
	"voicebot-service/internal/nlu"
)

// Event is one analytics record, serialized as a single JSONL line.
type Event struct {
	Timestamp string        `json:"timestamp"`
	Intent    string        `json:"intent"`
	Entities  nlu.EntitySet `json:"entities"`
	Success   bool          `json:"success"`
}

type Recorder struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger logger.Logger
}

func NewRecorder(path string, log logger.Logger) *Recorder {
	return &Recorder{
		path:   path,
		now:    time.Now,
		logger: log,
	}
}

// Record appends one event line. The mutex serializes writers so concurrent
// requests never interleave partial lines.
func (r *Recorder) Record(intent nlu.Intent, entities nlu.EntitySet, success bool) {
	event := Event{
		Timestamp: r.now().UTC().Format(time.RFC3339),
		Intent:    string(intent),
		Entities:  entities,
		Success:   success,
	}

	line, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn("analytics event marshal failed", map[string]interface{}{
			"intent": string(intent),
			"error":  err.Error(),
		})
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.WithError(apperrors.NewAnalyticsWriteFailedError(err)).
			Warn("analytics log open failed", map[string]interface{}{
				"path": r.path,
			})
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		r.logger.WithError(apperrors.NewAnalyticsWriteFailedError(err)).
			Warn("analytics log write failed", map[string]interface{}{
				"path": r.path,
			})
	}
}
