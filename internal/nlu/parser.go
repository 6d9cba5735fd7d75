package nlu

import (
	"context"
	"errors"

	apperrors "voicebot-service/internal/common/errors"
	"voicebot-service/internal/common/logger"
	"voicebot-service/internal/common/metrics"
)

// Result is the normalized output shape every parsing path produces.
type Result struct {
	Intent     Intent           `json:"intent"`
	Confidence float64          `json:"intent_confidence"`
	Entities   EntitySet        `json:"entities"`
	Error      *ValidationError `json:"error,omitempty"`
}

// FallbackExtractor is the external text-understanding service consulted
// when the rule path finds nothing.
type FallbackExtractor interface {
	Extract(ctx context.Context, transcript string) (Intent, EntitySet, error)
}

// Parser sequences classifier and extractor and decides whether to fall
// back to LLM extraction. Stateless across requests: one instance serves
// concurrent transcripts.
type Parser struct {
	extractor *Extractor
	fallback  FallbackExtractor
	cache     *ParseCache
	logger    logger.Logger
}

// NewParser builds a Parser. fallback and cache may be nil, disabling the
// respective path.
func NewParser(extractor *Extractor, fallback FallbackExtractor, cache *ParseCache, log logger.Logger) *Parser {
	return &Parser{
		extractor: extractor,
		fallback:  fallback,
		cache:     cache,
		logger: log.WithFields(map[string]interface{}{
			"component": "nlu-parser",
		}),
	}
}

// Parse runs the full NLU sequence. It never returns an error: a failed
// fallback degrades to an UNKNOWN result with empty entities.
func (p *Parser) Parse(ctx context.Context, transcript string) *Result {
	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, transcript); ok {
			return cached
		}
	}

	intent, confidence := Classify(transcript)
	entities, validationErr := p.extractor.Extract(transcript, intent)

	// The fallback is a last resort, not a confidence booster: it only
	// runs when the rule path found literally nothing.
	if intent == IntentUnknown && entities.Empty() {
		result := p.parseWithFallback(ctx, transcript)
		if p.cache != nil && result.Intent != IntentUnknown {
			p.cache.Put(ctx, transcript, result)
		}
		return result
	}

	result := &Result{
		Intent:     intent,
		Confidence: confidence,
		Entities:   entities,
		Error:      validationErr,
	}
	if p.cache != nil && validationErr == nil {
		p.cache.Put(ctx, transcript, result)
	}
	return result
}

func (p *Parser) parseWithFallback(ctx context.Context, transcript string) *Result {
	unknown := &Result{
		Intent:     IntentUnknown,
		Confidence: unknownConfidence,
		Entities:   EntitySet{},
	}

	if p.fallback == nil {
		return unknown
	}

	p.logger.Info("rule path found nothing, falling back to LLM", nil)

	intent, entities, err := p.fallback.Extract(ctx, transcript)
	if err != nil {
		metrics.NLUFallbacks.WithLabelValues("error").Inc()
		var stdErr *apperrors.StandardError
		if errors.Is(err, ErrLLMTimeout) {
			stdErr = apperrors.NewLLMTimeoutError()
		} else {
			stdErr = apperrors.NewLLMExtractionFailedError(err)
		}
		p.logger.WithError(stdErr).Warn("LLM extraction failed", nil)
		return unknown
	}

	metrics.NLUFallbacks.WithLabelValues("success").Inc()

	// The fallback path never reports a validation error; dispatch may
	// still fail downstream for missing fields.
	return &Result{
		Intent:     intent,
		Confidence: fallbackConfidence,
		Entities:   entities,
	}
}
