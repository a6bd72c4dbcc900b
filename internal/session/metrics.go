package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "session",
		Name:      "created_total",
		Help:      "Quiz sessions created.",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Session status transitions by target status.",
	}, []string{"to"})

	incidentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "proctor",
		Name:      "incidents_total",
		Help:      "Proctoring incidents by outcome.",
	}, []string{"outcome"})
)
