package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "generation",
		Name:      "attempts_total",
		Help:      "Generation attempts by bucket and outcome.",
	}, []string{"difficulty", "outcome"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "generation",
		Name:      "rejections_total",
		Help:      "Rejected model outputs by reason.",
	}, []string{"reason"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "generation",
		Name:      "runs_total",
		Help:      "Generation runs by result.",
	}, []string{"result"})
)
