package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebot-service/internal/common/config"
	"voicebot-service/internal/common/logger"
)

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	return NewClient(config.CRMConfig{
		BaseURL:    baseURL,
		Timeout:    2000,
		MaxRetries: maxRetries,
	}, logger.NewTestLogger(t))
}

func TestCreateLeadSuccess(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/leads", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"lead_id": "lead-1",
			"status":  "NEW",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	outcome := c.CreateLead(context.Background(), "Rahul Sharma", "9876543210", "Mumbai", "facebook")

	require.False(t, outcome.Failed())
	assert.Equal(t, "/crm/leads", outcome.Endpoint)
	assert.Equal(t, http.MethodPost, outcome.Method)
	assert.Equal(t, http.StatusCreated, outcome.StatusCode)
	assert.Equal(t, "lead-1", outcome.Result["lead_id"])
	assert.Equal(t, "facebook", gotPayload["source"])
}

func TestCreateLeadOmitsEmptySource(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"lead_id": "lead-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	outcome := c.CreateLead(context.Background(), "Rahul Sharma", "9876543210", "Mumbai", "")

	require.False(t, outcome.Failed())
	_, hasSource := gotPayload["source"]
	assert.False(t, hasSource)
}

func TestScheduleVisitEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/visits", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"visit_id": "visit-1", "status": "SCHEDULED"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	outcome := c.ScheduleVisit(context.Background(),
		"123e4567-e89b-12d3-a456-426614174000", "2025-01-02T17:00:00Z", "bring documents")

	require.False(t, outcome.Failed())
	assert.Equal(t, "SCHEDULED", outcome.Result["status"])
}

func TestUpdateLeadStatusEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/leads/lead-9/status", r.URL.Path)
		w.Write([]byte(`{"lead_id": "lead-9", "status": "WON"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	outcome := c.UpdateLeadStatus(context.Background(), "lead-9", "WON", "")

	require.False(t, outcome.Failed())
	assert.Equal(t, "WON", outcome.Result["status"])
}

func TestPostRetriesServerErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			http.Error(w, "backend down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"lead_id": "lead-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	outcome := c.CreateLead(context.Background(), "Rahul Sharma", "9876543210", "Mumbai", "")

	require.False(t, outcome.Failed())
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestPostExhaustedRetriesBecomeErrorOutcome(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	outcome := c.CreateLead(context.Background(), "Rahul Sharma", "9876543210", "Mumbai", "")

	require.True(t, outcome.Failed())
	assert.Equal(t, "CRM_ERROR", outcome.Error.Type)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": "invalid status"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	outcome := c.UpdateLeadStatus(context.Background(), "lead-9", "DONE", "")

	require.True(t, outcome.Failed())
	assert.Equal(t, "CRM_ERROR", outcome.Error.Type)
	assert.Contains(t, outcome.Error.Details, "422")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestPostUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(t, srv.URL, 1)
	outcome := c.CreateLead(context.Background(), "Rahul Sharma", "9876543210", "Mumbai", "")

	require.True(t, outcome.Failed())
	assert.Equal(t, "CRM_ERROR", outcome.Error.Type)
}

func TestListLeadsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"leads": [], "count": 0}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	result := c.ListLeads(context.Background())

	assert.Equal(t, float64(0), result["count"])
}

func TestListLeadsToleratesBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(t, srv.URL, 0)
	result := c.ListLeads(context.Background())

	assert.Empty(t, result)
}

func TestListVisitsToleratesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	result := c.ListVisits(context.Background())

	assert.Empty(t, result)
}
