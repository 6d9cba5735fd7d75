// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TranscriptsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_transcripts_handled_total",
			Help: "Total number of transcripts handled, by detected intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	NLUFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_nlu_fallbacks_total",
			Help: "Total number of LLM fallback extractions, by result",
		},
		[]string{"result"},
	)

	CRMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_crm_calls_total",
			Help: "Total number of CRM backend calls, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bot_request_duration_seconds",
			Help: "Duration of transcript handling in seconds",
		},
		[]string{"intent"},
	)
)
