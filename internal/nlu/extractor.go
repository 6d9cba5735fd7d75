package nlu

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	phonePattern   = regexp.MustCompile(`(\+91[\-\s]?)?\d{10}`)
	leadIDPattern  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	visitAtPattern = regexp.MustCompile(`(?i)at (.+?)(?:\.|$)`)
	notesPattern   = regexp.MustCompile(`(?i)notes[:\-]?\s*(.*)`)
	namePattern    = regexp.MustCompile(`(?:name\s)?([A-Z][a-z]+\s[A-Z][a-z]+)`)
	sourcePattern  = regexp.MustCompile(`(?i)source\s+(\w+)`)
)

// cities is the closed list of recognized city names.
var cities = []string{"Mumbai", "Delhi", "Gurgaon", "Bangalore", "Chennai", "Kolkata", "Pune"}

// statusOptions is the closed set of lead statuses.
var statusOptions = []string{"NEW", "IN_PROGRESS", "FOLLOW_UP", "WON", "LOST"}

// Extractor pulls typed slots out of raw transcripts. It holds no
// request-specific state: extraction is a pure function of the transcript,
// the intent, and the current wall-clock time used for date resolution.
type Extractor struct {
	now    func() time.Time
	parser *when.Parser
}

// NewExtractor builds an Extractor with a natural-language date parser for
// visit-time phrases the casual resolver does not recognize.
func NewExtractor() *Extractor {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Extractor{
		now:    time.Now,
		parser: w,
	}
}

// NewExtractorWithClock is like NewExtractor with a fixed clock, for tests.
func NewExtractorWithClock(now func() time.Time) *Extractor {
	e := NewExtractor()
	e.now = now
	return e
}

// Extract fills the slots relevant to the given intent and collects every
// missing required field, in check order, into a validation error. Slots not
// applicable to the intent are never attempted.
func (e *Extractor) Extract(transcript string, intent Intent) (EntitySet, *ValidationError) {
	var entities EntitySet
	var missing []string

	if m := phonePattern.FindString(transcript); m != "" {
		entities.Phone = &m
	} else if intent == IntentLeadCreate {
		missing = append(missing, "phone")
	}

	if m := leadIDPattern.FindString(transcript); m != "" {
		entities.LeadID = &m
	} else if intent == IntentVisitSchedule || intent == IntentLeadUpdate {
		missing = append(missing, "lead_id")
	}

	if intent == IntentVisitSchedule {
		if ts, ok := e.extractVisitTime(transcript); ok {
			entities.VisitTime = &ts
		} else {
			missing = append(missing, "visit_time")
		}

		if m := notesPattern.FindStringSubmatch(transcript); m != nil {
			notes := strings.TrimSpace(m[1])
			entities.Notes = &notes
		}
	}

	if intent == IntentLeadUpdate {
		lower := strings.ToLower(transcript)
		for _, s := range statusOptions {
			if strings.Contains(lower, strings.ToLower(s)) {
				status := s
				entities.Status = &status
				break
			}
		}
		if entities.Status == nil {
			missing = append(missing, "status")
		}

		if m := notesPattern.FindStringSubmatch(transcript); m != nil {
			notes := strings.TrimSpace(m[1])
			entities.Notes = &notes
		}
	}

	if intent == IntentLeadCreate {
		if m := namePattern.FindStringSubmatch(transcript); m != nil {
			entities.Name = &m[1]
		} else {
			missing = append(missing, "name")
		}

		lower := strings.ToLower(transcript)
		for _, city := range cities {
			if strings.Contains(lower, strings.ToLower(city)) {
				c := city
				entities.City = &c
				break
			}
		}
		if entities.City == nil {
			missing = append(missing, "city")
		}

		if m := sourcePattern.FindStringSubmatch(transcript); m != nil {
			entities.Source = &m[1]
		}
	}

	if len(missing) > 0 {
		return entities, &ValidationError{
			Type:          "VALIDATION_ERROR",
			MissingFields: missing,
		}
	}
	return entities, nil
}

// extractVisitTime locates an "at <phrase>" clause and resolves it, first
// with the casual resolver, then with the general parser preferring future
// dates. Returns false when no clause exists or neither resolver succeeds.
func (e *Extractor) extractVisitTime(transcript string) (string, bool) {
	m := visitAtPattern.FindStringSubmatch(transcript)
	if m == nil {
		return "", false
	}
	phrase := strings.TrimSpace(m[1])
	now := e.now()

	if dt, ok := ResolveCasualDate(phrase, now); ok {
		return dt.Format(time.RFC3339), true
	}

	result, err := e.parser.Parse(phrase, now)
	if err != nil || result == nil {
		return "", false
	}
	dt := result.Time
	if dt.Before(now) {
		// Prefer the next future occurrence for date-less clock phrases.
		dt = dt.AddDate(0, 0, 1)
	}
	return dt.Format(time.RFC3339), true
}
