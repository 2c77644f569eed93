package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpDBQuery, 10*time.Millisecond)
	c.RecordTiming(OpDBQuery, 30*time.Millisecond)
	c.Record(OpDBQuery, 20*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	op := snap.Operations[OpDBQuery]
	require.NotNil(t, op)
	assert.Equal(t, int64(3), op.Count)
	assert.Equal(t, int64(1), op.Errors)
	assert.Equal(t, int64(60), op.TotalTimeMs)
	assert.Equal(t, int64(10), op.MinTimeMs)
	assert.Equal(t, int64(30), op.MaxTimeMs)
	assert.InDelta(t, 20.0, op.AvgTimeMs, 0.001)
	assert.Nil(t, op.TotalInputTokens)
}

func TestCollectorLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 100, 40)
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 50, 10)

	op := c.Snapshot().Operations[OpLLMGenerate]
	require.NotNil(t, op)
	require.NotNil(t, op.TotalInputTokens)
	assert.Equal(t, int64(150), *op.TotalInputTokens)
	assert.Equal(t, int64(50), *op.TotalOutputTokens)
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()
	c.Inc(CounterThreadsCreated)
	c.Inc(CounterThreadsCreated)
	c.Inc(CounterJobsCreated)

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Counters[CounterThreadsCreated])
	assert.Equal(t, int64(1), snap.Counters[CounterJobsCreated])
	assert.Empty(t, snap.Operations)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTiming(OpHTTPRequest, time.Millisecond)
		c.RecordLLMUsage(OpLLMGenerate, time.Millisecond, 1, 1)
		c.Inc(CounterJobsCreated)
	})
}

func TestCollectorPrometheus(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpHTTPRequest, 5*time.Millisecond)
	c.Inc(CounterMessagesAppended)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP altron_events_total Domain event counters.
# TYPE altron_events_total counter
altron_events_total{event="messages_appended"} 1
# HELP altron_operation_total Number of completed operations.
# TYPE altron_operation_total counter
altron_operation_total{op="http_request"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"altron_events_total", "altron_operation_total")
	assert.NoError(t, err)
}
