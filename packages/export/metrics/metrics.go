// Package metrics aggregates a collection run into request counters and
// latency figures and exports them for scraping.
package metrics

import (
	"net/url"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/livespec/packages/core/runner"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

// RequestMetrics is one executed request.
type RequestMetrics struct {
	Name       string  `json:"name"`
	Method     string  `json:"method"`
	StatusCode int     `json:"status_code"`
	DurationMs float64 `json:"duration_ms"`
	Passed     bool    `json:"passed"`
}

// AggregateMetrics summarizes every request of a run.
type AggregateMetrics struct {
	Collection      string                       `json:"collection"`
	TotalRequests   int64                        `json:"total_requests"`
	SuccessCount    int64                        `json:"success_count"`
	FailureCount    int64                        `json:"failure_count"`
	SkippedCount    int64                        `json:"skipped_count"`
	TotalDurationMs float64                      `json:"total_duration_ms"`
	MinDurationMs   float64                      `json:"min_duration_ms"`
	MaxDurationMs   float64                      `json:"max_duration_ms"`
	AvgDurationMs   float64                      `json:"avg_duration_ms"`
	P50DurationMs   float64                      `json:"p50_duration_ms"`
	P95DurationMs   float64                      `json:"p95_duration_ms"`
	P99DurationMs   float64                      `json:"p99_duration_ms"`
	RunDurationMs   float64                      `json:"run_duration_ms"`
	StatusCodes     map[int]int64                `json:"status_codes"`
	ByRequest       map[string]*RequestAggregate `json:"by_request"`
}

// RequestAggregate groups the executions of requests sharing a name.
type RequestAggregate struct {
	Name          string  `json:"name"`
	TotalRequests int64   `json:"total_requests"`
	FailureCount  int64   `json:"failure_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Collector collects metrics from run results
type Collector struct {
	aggregate *AggregateMetrics
	histogram *hdrhistogram.Histogram // microseconds
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		aggregate: &AggregateMetrics{
			StatusCodes: make(map[int]int64),
			ByRequest:   make(map[string]*RequestAggregate),
		},
		histogram: hdrhistogram.New(1, 60_000_000, 3),
	}
}

// FromRunResult collects every request of result.
func FromRunResult(result *runner.RunResult) *AggregateMetrics {
	c := NewCollector()
	c.aggregate.Collection = result.Collection
	c.aggregate.RunDurationMs = float64(result.Duration.Microseconds()) / 1000
	for _, r := range result.Results {
		if r.Skipped {
			c.aggregate.SkippedCount++
			continue
		}
		c.Record(requestMetrics(r))
	}
	return c.Aggregate()
}

func requestMetrics(r *runner.RequestResult) *RequestMetrics {
	m := &RequestMetrics{Name: r.Name, Passed: r.Passed()}
	if r.Entry != nil {
		m.Method = r.Entry.Request.Method
		m.StatusCode = r.Entry.Response.Status
		m.DurationMs = r.Entry.Time
	}
	return m
}

// FromHAR collects every entry of a recorded trace. Entries are named by
// method and URL path.
func FromHAR(name string, har *trace.HAR) *AggregateMetrics {
	c := NewCollector()
	c.aggregate.Collection = name
	for i := range har.Log.Entries {
		e := &har.Log.Entries[i]
		c.RecordEntry(e.Request.Method+" "+entryPath(e.Request.URL), e)
	}
	return c.Aggregate()
}

func entryPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

// RecordEntry records a traced exchange, such as one captured by the proxy.
func (c *Collector) RecordEntry(name string, e *trace.Entry) {
	c.Record(&RequestMetrics{
		Name:       name,
		Method:     e.Request.Method,
		StatusCode: e.Response.Status,
		DurationMs: e.Time,
		Passed:     true,
	})
}

// Record records a request metric
func (c *Collector) Record(m *RequestMetrics) {
	a := c.aggregate
	a.TotalRequests++

	if !m.Passed {
		// Failed requests never got a response, so they carry no timing.
		a.FailureCount++
	} else {
		a.SuccessCount++
		a.TotalDurationMs += m.DurationMs
		if a.SuccessCount == 1 || m.DurationMs < a.MinDurationMs {
			a.MinDurationMs = m.DurationMs
		}
		if m.DurationMs > a.MaxDurationMs {
			a.MaxDurationMs = m.DurationMs
		}
		a.AvgDurationMs = a.TotalDurationMs / float64(a.SuccessCount)
		_ = c.histogram.RecordValue(max(int64(m.DurationMs*1000), 1))
		a.StatusCodes[m.StatusCode]++
	}

	ra, ok := a.ByRequest[m.Name]
	if !ok {
		ra = &RequestAggregate{Name: m.Name}
		a.ByRequest[m.Name] = ra
	}
	ra.TotalRequests++
	if !m.Passed {
		ra.FailureCount++
		return
	}
	passed := float64(ra.TotalRequests - ra.FailureCount)
	ra.AvgDurationMs = (ra.AvgDurationMs*(passed-1) + m.DurationMs) / passed
}

// Aggregate returns the aggregated metrics
func (c *Collector) Aggregate() *AggregateMetrics {
	if c.histogram.TotalCount() > 0 {
		c.aggregate.P50DurationMs = float64(c.histogram.ValueAtQuantile(50)) / 1000
		c.aggregate.P95DurationMs = float64(c.histogram.ValueAtQuantile(95)) / 1000
		c.aggregate.P99DurationMs = float64(c.histogram.ValueAtQuantile(99)) / 1000
	}
	return c.aggregate
}
