package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"voicebot-service/internal/common/config"
	"voicebot-service/internal/common/logger"
)

var (
	ErrLLMExtractionFailed = errors.New("LLM_EXTRACTION_FAILED")
	ErrLLMTimeout          = errors.New("LLM_TIMEOUT")
)

const llmPromptTemplate = `You are an intent and entity extraction engine for a CRM bot.
Extract intent (LEAD_CREATE, VISIT_SCHEDULE, LEAD_UPDATE, UNKNOWN)
and required entities from this transcript:

Transcript: %q

Respond in strict JSON with keys: intent, entities.
Entities keys: [name, phone, city, lead_id, visit_time, status, source, notes].
If a field is missing, return null for that key.`

// llmResponseSchema pins the structured document the fallback service must
// return; anything outside it is treated as an extraction failure.
var llmResponseSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"intent", "entities"},
	"properties": map[string]interface{}{
		"intent": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"LEAD_CREATE", "VISIT_SCHEDULE", "LEAD_UPDATE", "UNKNOWN"},
		},
		"entities": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name":       map[string]interface{}{"type": []interface{}{"string", "null"}},
				"phone":      map[string]interface{}{"type": []interface{}{"string", "null"}},
				"city":       map[string]interface{}{"type": []interface{}{"string", "null"}},
				"lead_id":    map[string]interface{}{"type": []interface{}{"string", "null"}},
				"visit_time": map[string]interface{}{"type": []interface{}{"string", "null"}},
				"status":     map[string]interface{}{"type": []interface{}{"string", "null"}},
				"source":     map[string]interface{}{"type": []interface{}{"string", "null"}},
				"notes":      map[string]interface{}{"type": []interface{}{"string", "null"}},
			},
		},
	},
}

// LLMExtractor sends a transcript to the text-understanding service and
// expects a strict-JSON intent/entities document back. It is only consulted
// when the rule path found literally nothing.
type LLMExtractor struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	logger     logger.Logger
}

func NewLLMExtractor(cfg config.LLMConfig, log logger.Logger) *LLMExtractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &LLMExtractor{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		timeout:    config.GetDuration(cfg.Timeout),
		maxRetries: cfg.MaxRetries,
		logger: log.WithFields(map[string]interface{}{
			"component": "llm-extractor",
		}),
	}
}

// Extract performs the fallback extraction. The returned error is one of the
// package sentinels wrapped with detail; callers treat any error as "no
// fallback result", never as a request failure.
func (l *LLMExtractor) Extract(ctx context.Context, transcript string) (Intent, EntitySet, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	prompt := fmt.Sprintf(llmPromptTemplate, transcript)

	var content string
	var lastErr error

	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return IntentUnknown, EntitySet{}, ErrLLMTimeout
			}
		}

		resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: l.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})

		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return IntentUnknown, EntitySet{}, ErrLLMTimeout
		}

		if err != nil {
			lastErr = err
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
				// Client-side API errors do not get better on retry.
				break
			}
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty choices in response")
			continue
		}

		content = resp.Choices[0].Message.Content
		lastErr = nil
		break
	}

	if lastErr != nil {
		return IntentUnknown, EntitySet{}, fmt.Errorf("%w: %v", ErrLLMExtractionFailed, lastErr)
	}

	intent, entities, err := decodeLLMResponse(content)
	if err != nil {
		return IntentUnknown, EntitySet{}, fmt.Errorf("%w: %v", ErrLLMExtractionFailed, err)
	}

	l.logger.Info("fallback extraction succeeded", map[string]interface{}{
		"intent": string(intent),
	})

	return intent, entities, nil
}

// decodeLLMResponse validates the raw document against the response schema
// before trusting any of its fields.
func decodeLLMResponse(content string) (Intent, EntitySet, error) {
	schemaLoader := gojsonschema.NewGoLoader(llmResponseSchema)
	documentLoader := gojsonschema.NewStringLoader(content)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return IntentUnknown, EntitySet{}, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return IntentUnknown, EntitySet{}, fmt.Errorf("response failed schema validation: %v", errs)
	}

	var doc struct {
		Intent   string    `json:"intent"`
		Entities EntitySet `json:"entities"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return IntentUnknown, EntitySet{}, fmt.Errorf("decode error: %w", err)
	}

	return ParseIntent(doc.Intent), doc.Entities, nil
}
