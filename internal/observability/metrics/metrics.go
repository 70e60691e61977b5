package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for conversation turns.
type TurnMetrics struct {
	turnsTotal    *prometheus.CounterVec
	gateTotal     *prometheus.CounterVec
	classifierSrc *prometheus.CounterVec
	replayTotal   prometheus.Counter
	receiptsTotal *prometheus.CounterVec
	turnLatency   *prometheus.HistogramVec
	inboundTotal  *prometheus.CounterVec
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blconcierge",
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Total completed turns by final classification",
		}, []string{"classification"}),
		gateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blconcierge",
			Subsystem: "engine",
			Name:      "verification_decisions_total",
			Help:      "Verification gate decisions",
		}, []string{"outcome"}),
		classifierSrc: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blconcierge",
			Subsystem: "engine",
			Name:      "classifications_total",
			Help:      "Intent classifications by source (canned, model, unparsed, unavailable)",
		}, []string{"source"}),
		replayTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blconcierge",
			Subsystem: "engine",
			Name:      "replays_total",
			Help:      "Deferred requests replayed after verification",
		}),
		receiptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blconcierge",
			Subsystem: "receipts",
			Name:      "total",
			Help:      "Reconciled payments by outcome and receipt result",
		}, []string{"payment", "receipt"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blconcierge",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "Latency of turn processing including replay",
			Buckets:   prometheus.DefBuckets,
		}, []string{"classification"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blconcierge",
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Inbound messages handled by the worker",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.gateTotal, m.classifierSrc, m.replayTotal, m.receiptsTotal, m.turnLatency, m.inboundTotal)
	return m
}

func (m *TurnMetrics) ObserveTurn(classification string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(classification).Inc()
	m.turnLatency.WithLabelValues(classification).Observe(seconds)
}

func (m *TurnMetrics) ObserveGate(outcome string) {
	if m == nil {
		return
	}
	m.gateTotal.WithLabelValues(outcome).Inc()
}

func (m *TurnMetrics) ObserveClassification(source string) {
	if m == nil {
		return
	}
	m.classifierSrc.WithLabelValues(source).Inc()
}

func (m *TurnMetrics) ObserveReplay() {
	if m == nil {
		return
	}
	m.replayTotal.Inc()
}

func (m *TurnMetrics) ObserveReceipt(payment, receipt string) {
	if m == nil {
		return
	}
	m.receiptsTotal.WithLabelValues(payment, receipt).Inc()
}

func (m *TurnMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}
