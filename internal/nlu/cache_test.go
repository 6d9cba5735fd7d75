package nlu

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebot-service/internal/common/logger"
)

func TestParseCacheGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewParseCache(db, time.Minute, logger.NewTestLogger(t))

	mock.ExpectGet(cacheKey("some transcript")).RedisNil()

	result, ok := cache.Get(context.Background(), "some transcript")
	assert.False(t, ok)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseCacheGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewParseCache(db, time.Minute, logger.NewTestLogger(t))

	stored := &Result{
		Intent:     IntentLeadCreate,
		Confidence: 0.9,
		Entities:   EntitySet{Name: strPtr("Rahul Sharma")},
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectGet(cacheKey("add rahul")).SetVal(string(data))

	result, ok := cache.Get(context.Background(), "add rahul")
	require.True(t, ok)
	assert.Equal(t, IntentLeadCreate, result.Intent)
	assert.Equal(t, "Rahul Sharma", ValueOf(result.Entities.Name))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseCacheGetCorruptEntry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewParseCache(db, time.Minute, logger.NewTestLogger(t))

	mock.ExpectGet(cacheKey("bad")).SetVal("not json at all")

	result, ok := cache.Get(context.Background(), "bad")
	assert.False(t, ok)
	assert.Nil(t, result)
}

func TestParseCachePut(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewParseCache(db, time.Minute, logger.NewTestLogger(t))

	result := &Result{Intent: IntentUnknown, Confidence: 0.3, Entities: EntitySet{}}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	mock.ExpectSet(cacheKey("hello"), data, time.Minute).SetVal("OK")

	cache.Put(context.Background(), "hello", result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheKeyIsStablePerTranscript(t *testing.T) {
	assert.Equal(t, cacheKey("same"), cacheKey("same"))
	assert.NotEqual(t, cacheKey("one"), cacheKey("two"))
	assert.Contains(t, cacheKey("anything"), "nlu:")
}
