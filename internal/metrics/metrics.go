package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vouch"

var (
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Verification operations by name and outcome.",
	}, []string{"op", "outcome"})

	Emails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "code_emails_total",
		Help:      "Verification code emails by result.",
	}, []string{"result"})

	RankGrants = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rank_grants_total",
		Help:      "Verified rank grants by path.",
	}, []string{"path"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Time spent handling a verification operation, including the wait for the member lock.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
