// Package metrics declares the Prometheus collectors of the cancellation flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ViewsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_web_cancellation_views_opened_total",
		Help: "Cancellation views opened after a successful ticket fetch",
	})
	ViewsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "booking_web_cancellation_views_active",
		Help: "Cancellation views currently held in memory",
	})
	ViewsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_web_cancellation_views_expired_total",
		Help: "Cancellation views removed by the sweeper",
	})
	TicketFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_web_ticket_fetch_failures_total",
		Help: "Ticket fetches that did not produce a view, by failure kind",
	}, []string{"kind"})
	OTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_web_otp_requests_total",
		Help: "OTP request and resend attempts, by outcome",
	}, []string{"outcome"})
	OTPVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_web_otp_verifications_total",
		Help: "OTP verification attempts, by outcome",
	}, []string{"outcome"})
	DownstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_web_downstream_duration_seconds",
		Help:    "Latency of calls to the booking backends",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"op"})
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeLimited  = "limited"
)

// ObserveDownstream records the time since start under op.
func ObserveDownstream(op string, start time.Time) {
	DownstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
