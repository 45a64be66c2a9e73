package metrics

import (
	"errors"
	"net/http"

	"trivia-quiz/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Quiz records session lifecycle counters. It satisfies app.Recorder.
type Quiz struct {
	registry *prometheus.Registry

	started   *prometheus.CounterVec
	failures  *prometheus.CounterVec
	finished  *prometheus.CounterVec
	score     *prometheus.HistogramVec
	timeSpent *prometheus.HistogramVec
}

// New registers the quiz collectors on a fresh registry.
func New() *Quiz {
	q := &Quiz{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trivia_sessions_started_total",
				Help: "Quiz rounds that received their questions",
			},
			[]string{"difficulty"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trivia_fetch_failures_total",
				Help: "Question fetches that failed, by failure kind",
			},
			[]string{"difficulty", "kind"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trivia_sessions_finished_total",
				Help: "Quiz rounds that reached the finished state",
			},
			[]string{"difficulty", "outcome"},
		),
		score: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trivia_session_score",
				Help:    "Correct answers per finished round",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
			[]string{"difficulty"},
		),
		timeSpent: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trivia_session_time_spent_seconds",
				Help:    "Seconds used per finished round",
				Buckets: []float64{5, 10, 15, 20, 25, 30},
			},
			[]string{"difficulty"},
		),
	}
	q.registry.MustRegister(q.started, q.failures, q.finished, q.score, q.timeSpent)
	return q
}

func (q *Quiz) SessionStarted(difficulty domain.Difficulty) {
	q.started.WithLabelValues(string(difficulty)).Inc()
}

func (q *Quiz) FetchFailed(difficulty domain.Difficulty, err error) {
	q.failures.WithLabelValues(string(difficulty), failureKind(err)).Inc()
}

func (q *Quiz) SessionFinished(record domain.HistoryRecord, timedOut bool) {
	outcome := "completed"
	if timedOut {
		outcome = "timed_out"
	}
	d := string(record.Difficulty)
	q.finished.WithLabelValues(d, outcome).Inc()
	q.score.WithLabelValues(d).Observe(float64(record.Score))
	q.timeSpent.WithLabelValues(d).Observe(float64(record.TimeSpent))
}

// Registry exposes the underlying registry for gathering.
func (q *Quiz) Registry() *prometheus.Registry {
	return q.registry
}

// Handler serves the registry in the Prometheus text format.
func (q *Quiz) Handler() http.Handler {
	return promhttp.HandlerFor(q.registry, promhttp.HandlerOpts{})
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrProvider):
		return "provider"
	default:
		return "other"
	}
}
