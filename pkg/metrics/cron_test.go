package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("order_pending_ttl", 250*time.Millisecond, nil)
	m.ObserveRun("order_pending_ttl", 10*time.Millisecond, errors.New("db down"))
	m.ObserveRun("", time.Millisecond, nil)
	m.IncSkipped()

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("order_pending_ttl", outcomeFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("order_pending_ttl", outcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", outcomeSuccess)), "blank job names map to unknown")
	require.Equal(t, 1.0, testutil.ToFloat64(m.skipped))

	// only successes stamp the gauge
	require.Equal(t, 2, testutil.CollectAndCount(m.lastSuccess))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	sum, err := fetchHistogramSum(mfs, "shop_cron_job_duration_seconds", "job", "order_pending_ttl")
	require.NoError(t, err)
	require.InDelta(t, 0.26, sum, 1e-9)
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	require.NotPanics(t, func() {
		m.ObserveRun("job", time.Second, nil)
		m.IncSkipped()
		NewCronJobMetrics(nil).ObserveRun("job", time.Second, errors.New("x"))
	})
}
