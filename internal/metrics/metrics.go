package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "dozemate_"

var (
	registerOnce sync.Once

	ingestAccepted *prometheus.CounterVec
	ingestDropped  *prometheus.CounterVec
	retractions    prometheus.Counter
	ingestErrors   *prometheus.CounterVec
)

// Init 注册入库指标（幂等）
func Init() {
	registerOnce.Do(func() {
		ingestAccepted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_accepted_total",
				Help: "Accepted telemetry messages by kind",
			},
			[]string{"kind"},
		)
		ingestDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_dropped_total",
				Help: "Dropped telemetry messages by reason",
			},
			[]string{"reason"},
		)
		retractions = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "retractions_total",
				Help: "Presence-drop retraction operations",
			},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Ingest failures by stage",
			},
			[]string{"stage"},
		)

		prometheus.MustRegister(ingestAccepted, ingestDropped, retractions, ingestErrors)
	})
}

func IngestAccepted(kind string) {
	if ingestAccepted != nil {
		ingestAccepted.WithLabelValues(kind).Inc()
	}
}

func IngestDropped(reason string) {
	if ingestDropped != nil {
		ingestDropped.WithLabelValues(reason).Inc()
	}
}

func Retraction() {
	if retractions != nil {
		retractions.Inc()
	}
}

func IngestError(stage string) {
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(stage).Inc()
	}
}

// Handler /metrics 端点
func Handler() http.Handler {
	return promhttp.Handler()
}
