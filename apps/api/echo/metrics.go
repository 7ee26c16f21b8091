package echoapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// login & otp outcomes
const (
	outcomeSuccess     = "success"
	outcomeOTPRequired = "otp_required"
	outcomeRejected    = "rejected"
	outcomeInvalid     = "invalid"
	outcomeError       = "error"
)

type metrics struct {
	logins           *prometheus.CounterVec
	otpVerifications *prometheus.CounterVec
	otpResends       *prometheus.CounterVec
	logouts          prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shule",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Password login attempts by outcome.",
		}, []string{"outcome", "status"}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shule",
			Subsystem: "auth",
			Name:      "otp_verifications_total",
			Help:      "One-time code verifications by outcome.",
		}, []string{"outcome", "status"}),
		otpResends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shule",
			Subsystem: "auth",
			Name:      "otp_resends_total",
			Help:      "One-time code resends by outcome.",
		}, []string{"outcome", "status"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shule",
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Logouts.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.logins,
		m.otpVerifications,
		m.otpResends,
		m.logouts,
	)
	return m
}

// MetricsHandler serves the server's metrics in the Prometheus exposition format.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
