package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Namespace prefixes every exported metric name.
const Namespace = "livespec"

// WritePrometheus writes the aggregate in the Prometheus text exposition
// format. Samples carry no timestamps so the output suits the node exporter
// textfile collector.
func WritePrometheus(w io.Writer, a *AggregateMetrics) error {
	pw := &promWriter{w: w, collection: sanitizeLabel(a.Collection)}

	pw.header("requests_total", "counter", "Requests executed, by outcome")
	pw.sample("requests_total", `outcome="success"`, float64(a.SuccessCount))
	pw.sample("requests_total", `outcome="failure"`, float64(a.FailureCount))
	pw.sample("requests_total", `outcome="skipped"`, float64(a.SkippedCount))

	pw.header("request_duration_ms", "gauge", "Request duration in milliseconds")
	pw.sample("request_duration_ms", `stat="min"`, a.MinDurationMs)
	pw.sample("request_duration_ms", `stat="max"`, a.MaxDurationMs)
	pw.sample("request_duration_ms", `stat="avg"`, a.AvgDurationMs)
	pw.sample("request_duration_ms", `stat="p50"`, a.P50DurationMs)
	pw.sample("request_duration_ms", `stat="p95"`, a.P95DurationMs)
	pw.sample("request_duration_ms", `stat="p99"`, a.P99DurationMs)

	pw.header("run_duration_ms", "gauge", "Wall time of the whole run in milliseconds")
	pw.sample("run_duration_ms", "", a.RunDurationMs)

	pw.header("responses_by_status_total", "counter", "Responses by HTTP status code")
	codes := make([]int, 0, len(a.StatusCodes))
	for code := range a.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		pw.sample("responses_by_status_total", fmt.Sprintf(`status="%d"`, code), float64(a.StatusCodes[code]))
	}

	if len(a.ByRequest) > 0 {
		names := make([]string, 0, len(a.ByRequest))
		for name := range a.ByRequest {
			names = append(names, name)
		}
		sort.Strings(names)

		pw.header("request_failures_total", "counter", "Failed executions per request")
		for _, name := range names {
			pw.sample("request_failures_total", fmt.Sprintf(`request="%s"`, sanitizeLabel(name)), float64(a.ByRequest[name].FailureCount))
		}
		pw.header("request_duration_avg_ms", "gauge", "Average duration per request")
		for _, name := range names {
			pw.sample("request_duration_avg_ms", fmt.Sprintf(`request="%s"`, sanitizeLabel(name)), a.ByRequest[name].AvgDurationMs)
		}
	}

	return pw.err
}

// WritePrometheusFile writes the exposition to path.
func WritePrometheusFile(path string, a *AggregateMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	if err := WritePrometheus(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type promWriter struct {
	w          io.Writer
	collection string
	err        error
}

func (p *promWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *promWriter) header(name, kind, help string) {
	p.printf("# HELP %s_%s %s\n", Namespace, name, help)
	p.printf("# TYPE %s_%s %s\n", Namespace, name, kind)
}

func (p *promWriter) sample(name, labels string, value float64) {
	all := fmt.Sprintf(`collection="%s"`, p.collection)
	if labels != "" {
		all += "," + labels
	}
	p.printf("%s_%s{%s} %s\n", Namespace, name, all, formatValue(value))
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.3f", v)
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
