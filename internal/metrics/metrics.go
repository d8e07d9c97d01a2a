// Package metrics exposes pipeline counters and timings to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "insurisk"

var (
	runsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Number of analysis runs by outcome.",
	}, []string{"status"})

	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent in each pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"stage"})

	policiesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "segmentation",
		Name:      "policies",
		Help:      "Policies per risk segment in the most recent run.",
	}, []string{"segment"})

	testsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hypothesis",
		Name:      "tests_total",
		Help:      "Hypothesis tests run by test name and decision.",
	}, []string{"test", "decision"})

	outliersGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "outliers",
		Name:      "flagged",
		Help:      "IQR outliers per column in the most recent run.",
	}, []string{"column"})

	lastRunGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful run.",
	})
)

func init() {
	prometheus.MustRegister(runsCounter, stageDuration, policiesGauge, testsCounter, outliersGauge, lastRunGauge)
}

// ObserveStage records how long a stage took
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts a finished run
func RecordRun(err error, at time.Time) {
	if err != nil {
		runsCounter.WithLabelValues("failed").Inc()
		return
	}
	runsCounter.WithLabelValues("succeeded").Inc()
	lastRunGauge.Set(float64(at.Unix()))
}

// RecordSegment sets the policy count of a segment
func RecordSegment(segment string, count int) {
	policiesGauge.WithLabelValues(segment).Set(float64(count))
}

// RecordTest counts a hypothesis test outcome
func RecordTest(test string, rejected bool) {
	decision := "fail_to_reject"
	if rejected {
		decision = "reject"
	}
	testsCounter.WithLabelValues(test, decision).Inc()
}

// RecordOutliers sets the number of IQR outliers in a column
func RecordOutliers(column string, count int) {
	outliersGauge.WithLabelValues(column).Set(float64(count))
}
