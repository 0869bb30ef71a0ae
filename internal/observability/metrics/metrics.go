package metrics

import "github.com/prometheus/client_golang/prometheus"

// SiteMetrics exposes counters/histograms for the clinic site flows.
type SiteMetrics struct {
	appointmentsTotal *prometheus.CounterVec
	ordersTotal       *prometheus.CounterVec
	notifyTotal       *prometheus.CounterVec
	chatRepliesTotal  *prometheus.CounterVec
	backendLatency    *prometheus.HistogramVec
	httpLatency       *prometheus.HistogramVec
}

func NewSiteMetrics(reg prometheus.Registerer) *SiteMetrics {
	m := &SiteMetrics{
		appointmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Appointment wizard submissions by outcome",
		}, []string{"outcome"}),
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "marketplace",
			Name:      "orders_total",
			Help:      "Marketplace checkouts by outcome",
		}, []string{"outcome"}),
		notifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "submissions_total",
			Help:      "Notification relay calls by kind and outcome",
		}, []string{"kind", "outcome"}),
		chatRepliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chatbot",
			Name:      "replies_total",
			Help:      "Chatbot replies by matched topic",
		}, []string{"topic"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "backend",
			Name:      "request_seconds",
			Help:      "Latency of managed backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "method"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "Latency of API requests by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.appointmentsTotal, m.ordersTotal, m.notifyTotal, m.chatRepliesTotal, m.backendLatency, m.httpLatency)
	return m
}

func (m *SiteMetrics) ObserveAppointment(outcome string) {
	if m == nil {
		return
	}
	m.appointmentsTotal.WithLabelValues(outcome).Inc()
}

func (m *SiteMetrics) ObserveOrder(outcome string) {
	if m == nil {
		return
	}
	m.ordersTotal.WithLabelValues(outcome).Inc()
}

func (m *SiteMetrics) ObserveNotify(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifyTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *SiteMetrics) ObserveChatReply(topic string) {
	if m == nil {
		return
	}
	m.chatRepliesTotal.WithLabelValues(topic).Inc()
}

func (m *SiteMetrics) ObserveBackendLatency(table, method string, seconds float64) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(table, method).Observe(seconds)
}

// ObserveHTTP records one request; route is the chi pattern, not the raw path.
func (m *SiteMetrics) ObserveHTTP(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpLatency.WithLabelValues(route, method, status).Observe(seconds)
}
