package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		transcript     string
		wantIntent     Intent
		wantConfidence float64
	}{
		{
			name:           "single lead create keyword",
			transcript:     "Please add Rahul Sharma from Mumbai",
			wantIntent:     IntentLeadCreate,
			wantConfidence: 0.7,
		},
		{
			name:           "all lead create keywords cap at one",
			transcript:     "add and create a new lead now",
			wantIntent:     IntentLeadCreate,
			wantConfidence: 1.0,
		},
		{
			name:           "two visit keywords",
			transcript:     "Schedule a visit for the client",
			wantIntent:     IntentVisitSchedule,
			wantConfidence: 0.9,
		},
		{
			name:           "update keyword",
			transcript:     "Update the lead please",
			wantIntent:     IntentLeadUpdate,
			wantConfidence: 0.7,
		},
		{
			name:           "mark keyword",
			transcript:     "mark it as won",
			wantIntent:     IntentLeadUpdate,
			wantConfidence: 0.7,
		},
		{
			name:           "case insensitive matching",
			transcript:     "ADD A LEAD",
			wantIntent:     IntentLeadCreate,
			wantConfidence: 0.7,
		},
		{
			name:           "no keyword at all",
			transcript:     "hello there, how is the weather",
			wantIntent:     IntentUnknown,
			wantConfidence: 0.3,
		},
		{
			name:           "empty transcript",
			transcript:     "",
			wantIntent:     IntentUnknown,
			wantConfidence: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, confidence := Classify(tt.transcript)
			assert.Equal(t, tt.wantIntent, intent)
			assert.InDelta(t, tt.wantConfidence, confidence, 1e-9)
		})
	}
}

func TestClassifyTieKeepsFirstIntent(t *testing.T) {
	// "add" and "visit" each score one keyword; the earlier intent wins.
	intent, confidence := Classify("add a visit")
	assert.Equal(t, IntentLeadCreate, intent)
	assert.InDelta(t, 0.7, confidence, 1e-9)
}

func TestClassifyIsDeterministic(t *testing.T) {
	transcript := "Schedule a visit tomorrow at 5pm"
	firstIntent, firstConf := Classify(transcript)
	for i := 0; i < 10; i++ {
		intent, conf := Classify(transcript)
		assert.Equal(t, firstIntent, intent)
		assert.Equal(t, firstConf, conf)
	}
}

func TestParseIntent(t *testing.T) {
	assert.Equal(t, IntentLeadCreate, ParseIntent("LEAD_CREATE"))
	assert.Equal(t, IntentVisitSchedule, ParseIntent("VISIT_SCHEDULE"))
	assert.Equal(t, IntentLeadUpdate, ParseIntent("LEAD_UPDATE"))
	assert.Equal(t, IntentUnknown, ParseIntent("UNKNOWN"))
	assert.Equal(t, IntentUnknown, ParseIntent("lead_create"))
	assert.Equal(t, IntentUnknown, ParseIntent(""))
	assert.Equal(t, IntentUnknown, ParseIntent("garbage"))
}
