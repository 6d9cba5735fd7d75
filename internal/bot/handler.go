// Package bot wires transcript parsing, CRM dispatch and analytics into
// the single /bot/handle operation.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"voicebot-service/internal/common/errors"
	"voicebot-service/internal/common/logger"
	"voicebot-service/internal/common/metrics"
	"voicebot-service/internal/crm"
	"voicebot-service/internal/nlu"
)

const maxTranscriptLen = 1000

const (
	msgLeadCreated   = "Lead created successfully."
	msgVisitBooked   = "Visit scheduled successfully."
	msgStatusUpdated = "Lead status updated successfully."
	msgUnknownIntent = "Unknown intent. No CRM action performed."
)

// TranscriptParser produces a structured parse of one transcript.
type TranscriptParser interface {
	Parse(ctx context.Context, transcript string) *nlu.Result
}

// CRMDispatcher is the subset of the CRM client the handler needs.
type CRMDispatcher interface {
	CreateLead(ctx context.Context, name, phone, city, source string) *crm.CallOutcome
	ScheduleVisit(ctx context.Context, leadID, visitTime, notes string) *crm.CallOutcome
	UpdateLeadStatus(ctx context.Context, leadID, status, notes string) *crm.CallOutcome
}

// EventRecorder receives one record per handled transcript.
type EventRecorder interface {
	Record(intent nlu.Intent, entities nlu.EntitySet, success bool)
}

type Handler struct {
	parser    TranscriptParser
	crm       CRMDispatcher
	analytics EventRecorder
	logger    logger.Logger
}

func NewHandler(parser TranscriptParser, dispatcher CRMDispatcher, recorder EventRecorder, log logger.Logger) *Handler {
	return &Handler{
		parser:    parser,
		crm:       dispatcher,
		analytics: recorder,
		logger: log.WithFields(map[string]interface{}{
			"component": "bot-handler",
		}),
	}
}

// Execute handles one transcript end to end. A returned error means the
// request was rejected before parsing; every parse or dispatch failure is
// reported inside the response instead.
func (h *Handler) Execute(ctx context.Context, req *BotRequest) (*BotResponse, error) {
	start := time.Now()

	// The limit is on characters, not bytes, so multibyte transcripts
	// are not penalized.
	if utf8.RuneCountInString(req.Transcript) > maxTranscriptLen {
		return nil, errors.NewInputTooLongError(maxTranscriptLen)
	}

	parsed := h.parser.Parse(ctx, req.Transcript)

	resp := &BotResponse{
		Intent:   string(parsed.Intent),
		Entities: parsed.Entities,
	}
	conf := parsed.Confidence
	resp.IntentConfidence = &conf

	success := false
	switch {
	case parsed.Error != nil:
		resp.Error = &ErrorModel{
			Type:          parsed.Error.Type,
			MissingFields: parsed.Error.MissingFields,
		}
		h.logger.WithError(errors.NewValidationError(parsed.Error.MissingFields)).
			Warn("required entities missing", map[string]interface{}{
				"intent": string(parsed.Intent),
			})

	case parsed.Intent == nlu.IntentUnknown:
		resp.Result = &ResultModel{Message: msgUnknownIntent}

	default:
		outcome := h.dispatch(ctx, parsed.Intent, parsed.Entities)
		resp.CRMCall = outcome
		if outcome.Failed() {
			resp.Error = &ErrorModel{
				Type:    outcome.Error.Type,
				Details: outcome.Error.Details,
			}
		} else {
			resp.Result = &ResultModel{Message: successMessage(parsed.Intent)}
			success = true
		}
	}

	if resp.Error != nil {
		code := errors.ErrorCode(resp.Error.Type)
		h.logger.Warn("transcript handled with error", map[string]interface{}{
			"intent":    string(parsed.Intent),
			"type":      resp.Error.Type,
			"category":  errors.GetErrorCategory(code),
			"retryable": errors.IsRetryableErrorCode(code),
		})
	}

	h.analytics.Record(parsed.Intent, parsed.Entities, success)

	outcomeLabel := "success"
	if !success {
		outcomeLabel = "failure"
	}
	metrics.TranscriptsHandled.WithLabelValues(string(parsed.Intent), outcomeLabel).Inc()
	metrics.RequestDuration.WithLabelValues(string(parsed.Intent)).Observe(time.Since(start).Seconds())

	h.logger.Info("transcript handled", map[string]interface{}{
		"intent":      string(parsed.Intent),
		"confidence":  parsed.Confidence,
		"success":     success,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

// dispatch runs the CRM operation for a recognized intent. A panic in the
// client surfaces as an error outcome so the response envelope stays intact.
func (h *Handler) dispatch(ctx context.Context, intent nlu.Intent, entities nlu.EntitySet) (outcome *crm.CallOutcome) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("CRM dispatch panicked", map[string]interface{}{
				"intent": string(intent),
				"panic":  fmt.Sprintf("%v", r),
			})
			outcome = &crm.CallOutcome{
				Error: &crm.CallError{
					Type:    string(errors.ErrCodeCRM),
					Details: fmt.Sprintf("dispatch panic: %v", r),
				},
			}
		}
	}()

	switch intent {
	case nlu.IntentLeadCreate:
		return h.crm.CreateLead(ctx,
			nlu.ValueOf(entities.Name),
			nlu.ValueOf(entities.Phone),
			nlu.ValueOf(entities.City),
			nlu.ValueOf(entities.Source))
	case nlu.IntentVisitSchedule:
		return h.crm.ScheduleVisit(ctx,
			nlu.ValueOf(entities.LeadID),
			nlu.ValueOf(entities.VisitTime),
			nlu.ValueOf(entities.Notes))
	case nlu.IntentLeadUpdate:
		return h.crm.UpdateLeadStatus(ctx,
			nlu.ValueOf(entities.LeadID),
			nlu.ValueOf(entities.Status),
			nlu.ValueOf(entities.Notes))
	}
	return &crm.CallOutcome{
		Error: &crm.CallError{
			Type:    string(errors.ErrCodeCRM),
			Details: "no dispatch for intent " + string(intent),
		},
	}
}

func successMessage(intent nlu.Intent) string {
	switch intent {
	case nlu.IntentLeadCreate:
		return msgLeadCreated
	case nlu.IntentVisitSchedule:
		return msgVisitBooked
	case nlu.IntentLeadUpdate:
		return msgStatusUpdated
	}
	return msgUnknownIntent
}

// ServeHTTP implements POST /bot/handle.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateRequest(raw); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var req BotRequest
	rebuilt, _ := json.Marshal(raw)
	if err := json.Unmarshal(rebuilt, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.Execute(r.Context(), &req)
	if err != nil {
		if stdErr, ok := err.(*errors.StandardError); ok && stdErr.Code == errors.ErrCodeInputTooLong {
			writeDetail(w, http.StatusBadRequest, stdErr.Message)
			return
		}
		h.logger.Error("request failed", map[string]interface{}{"error": err.Error()})
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]interface{}{"detail": detail})
}
