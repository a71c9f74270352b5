package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"earnify-bot/internal/ledger"
)

var (
	sweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "earnify_sweep_runs_total",
		Help: "Accrual sweeps by result.",
	}, []string{"result"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "earnify_sweep_duration_seconds",
		Help:    "Wall time of one accrual sweep.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	sweepUsers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "earnify_sweep_users_total",
		Help: "Users processed by accrual sweeps, by outcome.",
	}, []string{"outcome"})

	sweepCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "earnify_sweep_credited_total",
		Help: "Earnings credited to balances by accrual sweeps.",
	})

	sweepLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "earnify_sweep_last_success_timestamp_seconds",
		Help: "Unix time the last accrual sweep finished.",
	})
)

func observeReport(r ledger.SweepReport) {
	sweepRuns.WithLabelValues("ok").Inc()
	sweepUsers.WithLabelValues("updated").Add(float64(r.UsersUpdated))
	sweepUsers.WithLabelValues("failed").Add(float64(r.UsersFailed))
	credited, _ := r.TotalCredited.Float64()
	sweepCredited.Add(credited)
	sweepLastSuccess.Set(float64(r.FinishedAt.Unix()))
}
