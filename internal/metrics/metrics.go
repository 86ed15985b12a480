// Package metrics registers the Prometheus collectors for client and sandbox.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeRetained  = "retained"
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeMalformed = "malformed"
	OutcomeUnsigned  = "unverified"
)

var (
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinepay_client_transfers_total",
			Help: "Transfers initiated on the client, by route and outcome",
		},
		[]string{"route", "outcome"},
	)
	replaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinepay_client_replays_total",
			Help: "Queued transfers processed by drains, by outcome",
		},
		[]string{"outcome"},
	)
	pendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offlinepay_client_pending_transfers",
			Help: "Transfers waiting in the pending queue",
		},
	)
	smsCreditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinepay_client_sms_credits_total",
			Help: "Inbound credit notifications, by outcome",
		},
		[]string{"outcome"},
	)
	backendTransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinepay_backend_transfers_total",
			Help: "Transfers settled by the sandbox backend, by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordTransfer counts a client transfer; route is "online" or "offline".
func RecordTransfer(route, outcome string) {
	transfersTotal.WithLabelValues(route, outcome).Inc()
}

// RecordReplay counts one drained queue item.
func RecordReplay(outcome string) {
	replaysTotal.WithLabelValues(outcome).Inc()
}

// SetPending reports the current queue length.
func SetPending(n int) {
	pendingGauge.Set(float64(n))
}

// RecordSMSCredit counts an inbound credit notification.
func RecordSMSCredit(outcome string) {
	smsCreditsTotal.WithLabelValues(outcome).Inc()
}

// RecordBackendTransfer counts a transfer handled by the sandbox backend.
func RecordBackendTransfer(outcome string) {
	backendTransfersTotal.WithLabelValues(outcome).Inc()
}
