package metrics_test

import (
	"testing"

	"github.com/camziny/z-fit-2.0/internal/metrics"
	"github.com/camziny/z-fit-2.0/internal/workout"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestManager_Observer(t *testing.T) {
	m, reg := metrics.NewTestManagerAndRegistry()

	m.SessionBuilt()
	m.SetCompleted()
	m.SetCompleted()
	m.EffortRated(4)
	m.EffortRated(2)
	m.EffortRated(4)
	m.WeightResolved(workout.SourceFamily)
	m.WeightResolved(workout.SourceNone)
	m.ConflictRetried()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "sessions built", got: testutil.ToFloat64(m.CounterSessionsBuilt), want: 1},
		{name: "sets completed", got: testutil.ToFloat64(m.CounterSetsCompleted), want: 2},
		{name: "rir 4", got: testutil.ToFloat64(m.CounterEffortRatings.WithLabelValues("4")), want: 2},
		{name: "rir 2", got: testutil.ToFloat64(m.CounterEffortRatings.WithLabelValues("2")), want: 1},
		{name: "family", got: testutil.ToFloat64(m.CounterWeightResolutions.WithLabelValues("family")), want: 1},
		{name: "conflicts", got: testutil.ToFloat64(m.CounterConflictRetries), want: 1},
		{name: "sessions completed", got: testutil.ToFloat64(m.CounterSessionsCompleted), want: 0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n, err := testutil.GatherAndCount(reg, "zfit_test_server_weight_resolutions"); err != nil || n != 2 {
		t.Errorf("GatherAndCount() = %d, %v, want 2 series", n, err)
	}
}
