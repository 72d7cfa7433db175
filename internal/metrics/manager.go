// Package metrics holds the Prometheus instruments of the server and counts workout domain events.
package metrics

import (
	"strconv"

	"github.com/camziny/z-fit-2.0/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterHandleRequestPanic prometheus.Counter
	CounterSessionsBuilt      prometheus.Counter
	CounterSetsCompleted      prometheus.Counter
	CounterEffortRatings      *prometheus.CounterVec
	CounterProfileUpserts     prometheus.Counter
	CounterSessionsCompleted  prometheus.Counter
	CounterWeightResolutions  *prometheus.CounterVec
	CounterConflictRetries    prometheus.Counter

	// gauges
	GaugeRequests prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
}

var _ workout.Observer = (*Manager)(nil)

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("zfit", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: nil,
		})
	}

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "request",
		Help:        "The total number of incoming requests",
		ConstLabels: nil,
	}, []string{"method", "status"})
	counterEffortRatings := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "effort_ratings",
		Help:        "The total number of effort ratings by reps in reserve",
		ConstLabels: nil,
	}, []string{"rir"})
	counterWeightResolutions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "weight_resolutions",
		Help:        "The total number of planned weight resolutions by source",
		ConstLabels: nil,
	}, []string{"source"})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "current_requests",
		Help:        "Current number of requests served",
		ConstLabels: nil,
	})

	histReqDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "request_duration_seconds",
		Help:        "Total duration of requests in seconds",
		ConstLabels: nil,
		Buckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})

	return &Manager{
		CounterRequests:           counterRequests,
		CounterHandleRequestPanic: counter("handle_request_panic", "The total number of serve request panics"),
		CounterSessionsBuilt:      counter("sessions_built", "The total number of built workout sessions"),
		CounterSetsCompleted:      counter("sets_completed", "The total number of sets marked done"),
		CounterEffortRatings:      counterEffortRatings,
		CounterProfileUpserts:     counter("profile_upserts", "The total number of progression profile writes"),
		CounterSessionsCompleted:  counter("sessions_completed", "The total number of completed workout sessions"),
		CounterWeightResolutions:  counterWeightResolutions,
		CounterConflictRetries: counter("session_conflict_retries",
			"The total number of session updates retried after a concurrent modification"),
		GaugeRequests:       gaugeRequests,
		HistRequestDuration: histReqDuration,
	}
}

func (m *Manager) SessionBuilt()     { m.CounterSessionsBuilt.Inc() }
func (m *Manager) SetCompleted()     { m.CounterSetsCompleted.Inc() }
func (m *Manager) ProfileUpserted()  { m.CounterProfileUpserts.Inc() }
func (m *Manager) SessionCompleted() { m.CounterSessionsCompleted.Inc() }
func (m *Manager) ConflictRetried()  { m.CounterConflictRetries.Inc() }

func (m *Manager) EffortRated(rir int) {
	m.CounterEffortRatings.WithLabelValues(strconv.Itoa(rir)).Inc()
}

func (m *Manager) WeightResolved(source workout.Source) {
	m.CounterWeightResolutions.WithLabelValues(string(source)).Inc()
}
