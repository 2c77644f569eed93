// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for LLM operations)
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	// Token stats (nil if not applicable)
	TotalInputTokens  *int64 `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int64 `json:"total_output_tokens,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                       `json:"uptime_seconds"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
	Counters      map[string]int64              `json:"counters"`
}

// Operation names for the collector.
const (
	OpHTTPRequest = "http_request"
	OpDBQuery     = "db_query"
	OpJobRun      = "job_run"
	OpLLMGenerate = "llm_generate"
	OpRelayReply  = "relay_reply"
	OpMCPRequest  = "mcp_request"
	OpConverse    = "converse"
)

// Counter names for the collector.
const (
	CounterThreadsCreated   = "threads_created"
	CounterThreadsDeleted   = "threads_deleted"
	CounterMessagesAppended = "messages_appended"
	CounterJobsCreated      = "jobs_created"
	CounterJobsTerminated   = "jobs_terminated"
	CounterRelayMessages    = "relay_messages"
	CounterToolErrors       = "tool_errors"
)

var (
	opCountDesc = prometheus.NewDesc(
		"altron_operation_total",
		"Number of completed operations.",
		[]string{"op"}, nil,
	)
	opErrorsDesc = prometheus.NewDesc(
		"altron_operation_errors_total",
		"Number of failed operations.",
		[]string{"op"}, nil,
	)
	opSecondsDesc = prometheus.NewDesc(
		"altron_operation_seconds_total",
		"Total time spent in operations.",
		[]string{"op"}, nil,
	)
	opTokensDesc = prometheus.NewDesc(
		"altron_llm_tokens_total",
		"Tokens consumed by LLM operations.",
		[]string{"op", "direction"}, nil,
	)
	counterDesc = prometheus.NewDesc(
		"altron_events_total",
		"Domain event counters.",
		[]string{"event"}, nil,
	)
	uptimeDesc = prometheus.NewDesc(
		"altron_uptime_seconds",
		"Seconds since the collector was created.",
		nil, nil,
	)
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. The recording methods are no-ops on a nil
// *Collector.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	counters  map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		counters:  make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(duration time.Duration, failed bool) {
	m.Count++
	if failed {
		m.Errors++
	}
	m.TotalTime += duration
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.Record(op, duration, nil)
}

// Record records timing for an operation and counts it as failed when err
// is non-nil.
func (c *Collector) Record(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(op).observe(duration, err != nil)
}

// RecordLLMUsage records timing and token usage for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.observe(duration, false)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// Inc increments a named event counter.
func (c *Collector) Inc(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counters[name]++
	c.mu.Unlock()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
		totalIn := m.TotalInputTokens
		totalOut := m.TotalOutputTokens
		snap.TotalInputTokens = &totalIn
		snap.TotalOutputTokens = &totalOut
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make(map[string]*OperationSnapshot, len(c.ops)),
		Counters:      make(map[string]int64, len(c.counters)),
	}
	for op, m := range c.ops {
		if s := snapshotOp(m); s != nil {
			snap.Operations[op] = s
		}
	}
	for name, v := range c.counters {
		snap.Counters[name] = v
	}
	return snap
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- opCountDesc
	ch <- opErrorsDesc
	ch <- opSecondsDesc
	ch <- opTokensDesc
	ch <- counterDesc
	ch <- uptimeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())

	ops := make([]string, 0, len(c.ops))
	for op := range c.ops {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		m := c.ops[op]
		ch <- prometheus.MustNewConstMetric(opCountDesc, prometheus.CounterValue, float64(m.Count), op)
		ch <- prometheus.MustNewConstMetric(opErrorsDesc, prometheus.CounterValue, float64(m.Errors), op)
		ch <- prometheus.MustNewConstMetric(opSecondsDesc, prometheus.CounterValue, m.TotalTime.Seconds(), op)
		if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
			ch <- prometheus.MustNewConstMetric(opTokensDesc, prometheus.CounterValue, float64(m.TotalInputTokens), op, "input")
			ch <- prometheus.MustNewConstMetric(opTokensDesc, prometheus.CounterValue, float64(m.TotalOutputTokens), op, "output")
		}
	}

	for name, v := range c.counters {
		ch <- prometheus.MustNewConstMetric(counterDesc, prometheus.CounterValue, float64(v), name)
	}
}
