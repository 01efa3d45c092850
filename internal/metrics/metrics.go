package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saasgw_messages_total",
			Help: "WhatsApp send outcomes by stage",
		},
		[]string{"stage"}, // sent|failed|duplicate|persist_warning
	)

	ProxyCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saasgw_proxy_calls_total",
			Help: "Third-party proxy calls by provider, action and outcome",
		},
		[]string{"provider", "action", "outcome"}, // outcome: ok|error
	)

	AuditRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saasgw_audit_rows_total",
			Help: "Audit worker rows by result",
		},
		[]string{"result"}, // inserted|skipped|failed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		MessagesTotal,
		ProxyCallsTotal,
		AuditRowsTotal,
	)
}

// Outcome labels a call result for ProxyCallsTotal.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
