// Package nlu implements the transcript understanding pipeline: keyword
// intent classification, intent-conditioned entity extraction, casual date
// resolution, and an LLM-based extraction fallback for transcripts the rule
// path cannot make sense of.
package nlu

import "strings"

// Intent identifies the action a transcript requests.
type Intent string

const (
	IntentLeadCreate    Intent = "LEAD_CREATE"
	IntentVisitSchedule Intent = "VISIT_SCHEDULE"
	IntentLeadUpdate    Intent = "LEAD_UPDATE"
	IntentUnknown       Intent = "UNKNOWN"
)

// ParseIntent maps a string onto the closed intent set; anything
// unrecognized becomes IntentUnknown.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentLeadCreate, IntentVisitSchedule, IntentLeadUpdate:
		return Intent(s)
	default:
		return IntentUnknown
	}
}

const (
	// unknownConfidence is reported when no keyword matches.
	unknownConfidence = 0.3
	// fallbackConfidence is the fixed score for LLM-derived results.
	fallbackConfidence = 0.7
)

// intentTriggers is ordered: ties between intents keep the first-seen one.
var intentTriggers = []struct {
	intent   Intent
	keywords []string
}{
	{IntentLeadCreate, []string{"add", "create", "new lead"}},
	{IntentVisitSchedule, []string{"schedule", "fix", "visit"}},
	{IntentLeadUpdate, []string{"update", "mark"}},
}

// Classify scores each intent by the number of its trigger keywords present
// in the lowercased transcript and returns the best one with a confidence
// in [0,1]. No match yields IntentUnknown with a fixed low confidence.
func Classify(transcript string) (Intent, float64) {
	lower := strings.ToLower(transcript)

	bestIntent := IntentUnknown
	bestConf := unknownConfidence

	for _, candidate := range intentTriggers {
		matches := 0
		for _, kw := range candidate.keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		conf := 0.5 + 0.2*float64(matches)
		if conf > 1.0 {
			conf = 1.0
		}
		if conf > bestConf {
			bestConf = conf
			bestIntent = candidate.intent
		}
	}

	return bestIntent, bestConf
}
