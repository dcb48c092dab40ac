package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineFitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_engine_fit_total",
			Help: "Total number of engine fit operations",
		},
		[]string{"status"},
	)

	EngineParseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_engine_parse_total",
			Help: "Total number of engine parse operations",
		},
		[]string{"status"},
	)

	EngineParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "nlu_engine_parse_duration_seconds",
			Help: "Duration of parse operations in seconds",
		},
	)

	EngineFitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "nlu_engine_fit_duration_seconds",
			Help: "Duration of fit operations in seconds",
		},
	)

	ParseCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlu_parse_cache_lookups_total",
			Help: "Parse cache lookups by result",
		},
		[]string{"result"},
	)
)
