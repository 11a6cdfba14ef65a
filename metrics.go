package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"seating/solver"
)

var (
	generateSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seating_generate_seconds",
			Help:    "Time spent generating one seating",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	generateHardConflicts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seating_hard_conflicts",
			Help:    "Relationship rules still broken after a seating run",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)

	unplacedStudents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seating_unplaced_students_total",
			Help: "Students left without a seat because the room was full",
		},
	)

	generateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seating_generate_total",
			Help: "Seating runs by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(generateSeconds)
	prometheus.MustRegister(generateHardConflicts)
	prometheus.MustRegister(unplacedStudents)
	prometheus.MustRegister(generateTotal)
}

func observeGenerate(res solver.Result, elapsed time.Duration) {
	generateSeconds.Observe(elapsed.Seconds())
	generateHardConflicts.Observe(float64(res.HardConflicts))
	unplacedStudents.Add(float64(len(res.Unplaced)))
	outcome := "clean"
	if res.HardConflicts > 0 {
		outcome = "conflicts"
	}
	generateTotal.WithLabelValues(outcome).Inc()
}
