package alertbus

import "github.com/prometheus/client_golang/prometheus"

type metricSet struct {
	msgs     *prometheus.CounterVec
	dispatch *prometheus.CounterVec
	lagGauge prometheus.Gauge
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	ms := &metricSet{
		msgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aeris_alertbus_messages_total",
			Help: "Dispatch-bus messages consumed, by outcome.",
		}, []string{"outcome"}),
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aeris_alertbus_webhook_total",
			Help: "Webhook POST attempts performed by the dispatch runner, by outcome.",
		}, []string{"outcome"}),
		lagGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aeris_alertbus_consumer_lag",
			Help: "Approximate partition lag last observed by the runner.",
		}),
	}
	if r != nil {
		r.MustRegister(ms.msgs, ms.dispatch, ms.lagGauge)
	}
	return ms
}

func (m *metricSet) incMsg(outcome string) {
	if m == nil {
		return
	}
	m.msgs.WithLabelValues(outcome).Inc()
}

func (m *metricSet) incDispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(outcome).Inc()
}

func (m *metricSet) setLag(lag int64) {
	if m == nil {
		return
	}
	m.lagGauge.Set(float64(lag))
}
