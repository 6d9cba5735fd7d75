package bot

import (
	"voicebot-service/internal/crm"
	"voicebot-service/internal/nlu"
)

// BotRequest is the inbound payload on POST /bot/handle. Metadata is
// accepted for forward compatibility but not interpreted.
type BotRequest struct {
	Transcript string            `json:"transcript"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ErrorModel reports a request-level failure inside an otherwise
// successful HTTP response.
type ErrorModel struct {
	Type          string   `json:"type"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Details       string   `json:"details,omitempty"`
}

// ResultModel carries the human-readable outcome message.
type ResultModel struct {
	Message string `json:"message"`
}

// BotResponse is the full envelope returned for a handled transcript.
type BotResponse struct {
	Intent           string           `json:"intent"`
	IntentConfidence *float64         `json:"intent_confidence,omitempty"`
	Entities         nlu.EntitySet    `json:"entities"`
	CRMCall          *crm.CallOutcome `json:"crm_call,omitempty"`
	Result           *ResultModel     `json:"result,omitempty"`
	Error            *ErrorModel      `json:"error,omitempty"`
}
