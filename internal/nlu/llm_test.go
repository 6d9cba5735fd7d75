package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebot-service/internal/common/config"
	"voicebot-service/internal/common/logger"
)

func TestDecodeLLMResponse(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		content := `{
			"intent": "LEAD_CREATE",
			"entities": {
				"name": "Rahul Sharma",
				"phone": "9876543210",
				"city": "Mumbai",
				"lead_id": null,
				"visit_time": null,
				"status": null,
				"source": null,
				"notes": null
			}
		}`
		intent, entities, err := decodeLLMResponse(content)
		require.NoError(t, err)
		assert.Equal(t, IntentLeadCreate, intent)
		assert.Equal(t, "Rahul Sharma", ValueOf(entities.Name))
		assert.Nil(t, entities.LeadID)
	})

	t.Run("intent outside the enum", func(t *testing.T) {
		_, _, err := decodeLLMResponse(`{"intent": "DELETE_EVERYTHING", "entities": {}}`)
		assert.Error(t, err)
	})

	t.Run("missing entities key", func(t *testing.T) {
		_, _, err := decodeLLMResponse(`{"intent": "LEAD_CREATE"}`)
		assert.Error(t, err)
	})

	t.Run("non-string entity value", func(t *testing.T) {
		_, _, err := decodeLLMResponse(`{"intent": "LEAD_CREATE", "entities": {"phone": 9876543210}}`)
		assert.Error(t, err)
	})

	t.Run("not JSON at all", func(t *testing.T) {
		_, _, err := decodeLLMResponse("sure, here is the extraction you asked for")
		assert.Error(t, err)
	})
}

// chatCompletionBody builds a minimal OpenAI-style completion response
// wrapping the given message content.
func chatCompletionBody(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
}

func newLLMTestExtractor(t *testing.T, baseURL string, maxRetries int) *LLMExtractor {
	t.Helper()
	return NewLLMExtractor(config.LLMConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "gpt-4o-mini",
		Timeout:    2000,
		MaxRetries: maxRetries,
	}, logger.NewTestLogger(t))
}

func TestLLMExtractSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletionBody(
			`{"intent": "VISIT_SCHEDULE", "entities": {"lead_id": "` + testLeadID + `", "visit_time": "2025-01-02T17:00:00Z"}}`,
		))
	}))
	defer srv.Close()

	e := newLLMTestExtractor(t, srv.URL+"/v1", 0)
	intent, entities, err := e.Extract(context.Background(), "see the client tomorrow evening")

	require.NoError(t, err)
	assert.Equal(t, IntentVisitSchedule, intent)
	assert.Equal(t, testLeadID, ValueOf(entities.LeadID))
	assert.Equal(t, "2025-01-02T17:00:00Z", ValueOf(entities.VisitTime))
}

func TestLLMExtractRetriesServerErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletionBody(`{"intent": "UNKNOWN", "entities": {}}`))
	}))
	defer srv.Close()

	e := newLLMTestExtractor(t, srv.URL+"/v1", 2)
	intent, _, err := e.Extract(context.Background(), "anything")

	require.NoError(t, err)
	assert.Equal(t, IntentUnknown, intent)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestLLMExtractDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, `{"error": {"message": "bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	e := newLLMTestExtractor(t, srv.URL+"/v1", 2)
	_, _, err := e.Extract(context.Background(), "anything")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLLMExtractionFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestLLMExtractMalformedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletionBody("I could not parse that transcript, sorry."))
	}))
	defer srv.Close()

	e := newLLMTestExtractor(t, srv.URL+"/v1", 0)
	intent, entities, err := e.Extract(context.Background(), "anything")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLLMExtractionFailed))
	assert.Equal(t, IntentUnknown, intent)
	assert.True(t, entities.Empty())
}

func TestLLMExtractUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	e := newLLMTestExtractor(t, srv.URL+"/v1", 0)
	intent, entities, err := e.Extract(context.Background(), "anything")

	require.Error(t, err)
	assert.Equal(t, IntentUnknown, intent)
	assert.True(t, entities.Empty())
}
