// Package crm talks to the external relationship-management backend. One
// shared, thread-safe Client is constructed at process start and injected
// into the dispatcher; it is never recreated per request.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"voicebot-service/internal/common/config"
	"voicebot-service/internal/common/errors"
	"voicebot-service/internal/common/logger"
	"voicebot-service/internal/common/metrics"
)

// CallError is a backend failure payload surfaced to the response.
type CallError struct {
	Type    string `json:"type"`
	Details string `json:"details,omitempty"`
}

// CallOutcome reports one backend call. Exactly one of the success fields
// (Endpoint/Method/StatusCode/Result) or Error holds.
type CallOutcome struct {
	Endpoint   string                 `json:"endpoint,omitempty"`
	Method     string                 `json:"method,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      *CallError             `json:"error,omitempty"`
}

// Failed reports whether the outcome carries a backend error.
func (o *CallOutcome) Failed() bool {
	return o == nil || o.Error != nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     logger.Logger
}

func NewClient(cfg config.CRMConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		maxRetries: cfg.MaxRetries,
		logger: log.WithFields(map[string]interface{}{
			"component": "crm-client",
		}),
	}
}

// CreateLead registers a new lead with the backend.
func (c *Client) CreateLead(ctx context.Context, name, phone, city, source string) *CallOutcome {
	payload := map[string]interface{}{
		"name":  name,
		"phone": phone,
		"city":  city,
	}
	if source != "" {
		payload["source"] = source
	}
	return c.post(ctx, "create-lead", "/crm/leads", payload)
}

// ScheduleVisit books a visit for an existing lead.
func (c *Client) ScheduleVisit(ctx context.Context, leadID, visitTime, notes string) *CallOutcome {
	payload := map[string]interface{}{
		"lead_id":    leadID,
		"visit_time": visitTime,
	}
	if notes != "" {
		payload["notes"] = notes
	}
	return c.post(ctx, "schedule-visit", "/crm/visits", payload)
}

// UpdateLeadStatus moves a lead to a new status.
func (c *Client) UpdateLeadStatus(ctx context.Context, leadID, status, notes string) *CallOutcome {
	payload := map[string]interface{}{
		"status": status,
	}
	if notes != "" {
		payload["notes"] = notes
	}
	return c.post(ctx, "update-lead-status", fmt.Sprintf("/crm/leads/%s/status", leadID), payload)
}

// post executes one write operation with retries on server-side failures,
// using capped exponential backoff. A failure after retries becomes an
// error outcome, never a returned Go error.
func (c *Client) post(ctx context.Context, operation, endpoint string, payload map[string]interface{}) *CallOutcome {
	body, err := json.Marshal(payload)
	if err != nil {
		metrics.CRMCalls.WithLabelValues(operation, "error").Inc()
		return errorOutcome(fmt.Errorf("marshal payload: %w", err))
	}

	var resp *http.Response
	var lastErr error

retry:
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				resp = nil
				break retry
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(body))
		if reqErr != nil {
			metrics.CRMCalls.WithLabelValues(operation, "error").Inc()
			return errorOutcome(fmt.Errorf("create request: %w", reqErr))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = c.httpClient.Do(req)
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			resp = nil
			break retry
		}

		if lastErr == nil {
			if !isRetryableStatus(resp.StatusCode) {
				break retry
			}
			// 5xx: drain and retry
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
			resp = nil
		}
	}

	if lastErr != nil && resp == nil {
		c.logger.Error("CRM call failed", map[string]interface{}{
			"operation": operation,
			"endpoint":  endpoint,
			"error":     lastErr.Error(),
		})
		metrics.CRMCalls.WithLabelValues(operation, "error").Inc()
		return errorOutcome(lastErr)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CRMCalls.WithLabelValues(operation, "error").Inc()
		return errorOutcome(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("CRM call rejected", map[string]interface{}{
			"operation": operation,
			"endpoint":  endpoint,
			"status":    resp.StatusCode,
		})
		metrics.CRMCalls.WithLabelValues(operation, "error").Inc()
		return errorOutcome(fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		metrics.CRMCalls.WithLabelValues(operation, "error").Inc()
		return errorOutcome(fmt.Errorf("decode response: %w", err))
	}

	metrics.CRMCalls.WithLabelValues(operation, "success").Inc()
	return &CallOutcome{
		Endpoint:   endpoint,
		Method:     http.MethodPost,
		StatusCode: resp.StatusCode,
		Result:     result,
	}
}

// ListLeads fetches all leads for diagnostics. Tolerant of failure: returns
// an empty map on any error, logged not raised.
func (c *Client) ListLeads(ctx context.Context) map[string]interface{} {
	return c.list(ctx, "/crm/leads")
}

// ListVisits fetches all scheduled visits for diagnostics, same tolerance
// as ListLeads.
func (c *Client) ListVisits(ctx context.Context) map[string]interface{} {
	return c.list(ctx, "/crm/visits")
}

func (c *Client) list(ctx context.Context, endpoint string) map[string]interface{} {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return map[string]interface{}{}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("CRM list failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return map[string]interface{}{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("CRM list rejected", map[string]interface{}{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		return map[string]interface{}{}
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn("CRM list decode failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return map[string]interface{}{}
	}
	return result
}

func errorOutcome(err error) *CallOutcome {
	stdErr := errors.NewCRMError(err)
	return &CallOutcome{
		Error: &CallError{
			Type:    string(stdErr.Code),
			Details: stdErr.Details,
		},
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
