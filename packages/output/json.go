package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/livespec/packages/core/runner"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Collection string        `json:"collection"`
	RunID      string        `json:"runId,omitempty"`
	Summary    JSONSummary   `json:"summary"`
	Requests   []JSONRequest `json:"requests"`
	Warnings   []string      `json:"warnings,omitempty"`
	Duration   float64       `json:"duration"`
	Time       string        `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// JSONRequest represents the outcome of a single request
type JSONRequest struct {
	Name       string        `json:"name"`
	Succeeded  bool          `json:"succeeded"`
	Skipped    bool          `json:"skipped,omitempty"`
	SkipReason string        `json:"skipReason,omitempty"`
	Error      string        `json:"error,omitempty"`
	Method     string        `json:"method,omitempty"`
	URL        string        `json:"url,omitempty"`
	Response   *JSONResponse `json:"response,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	Status      int     `json:"status"`
	StatusText  string  `json:"statusText"`
	ContentType string  `json:"contentType"`
	Duration    float64 `json:"duration"`
}

// JSONReporter collects run progress and writes a single JSON document.
type JSONReporter struct {
	mu       sync.Mutex
	writer   io.Writer
	output   JSONOutput
	finished bool
}

type JSONOption func(*JSONReporter)

func NewJSONReporter(opts ...JSONOption) *JSONReporter {
	f := &JSONReporter{
		writer: os.Stdout,
		output: JSONOutput{Requests: make([]JSONRequest, 0)},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONReporter) {
		f.writer = w
	}
}

func (f *JSONReporter) RunStarted(name string, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output.Collection = name
}

func (f *JSONReporter) RequestStarted(index, total int, name string) {}

func (f *JSONReporter) RequestSucceeded(name string, entry *trace.Entry) {
	f.add(JSONRequest{
		Name:      name,
		Succeeded: true,
		Method:    entry.Request.Method,
		URL:       entry.Request.URL,
		Response: &JSONResponse{
			Status:      entry.Response.Status,
			StatusText:  entry.Response.StatusText,
			ContentType: entry.Response.Content.MimeType,
			Duration:    entry.Time,
		},
	})
}

func (f *JSONReporter) RequestFailed(name string, err error) {
	f.add(JSONRequest{Name: name, Error: err.Error()})
}

func (f *JSONReporter) RequestSkipped(name, reason string) {
	f.add(JSONRequest{Name: name, Skipped: true, SkipReason: reason})
}

func (f *JSONReporter) Warning(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output.Warnings = append(f.output.Warnings, message)
}

func (f *JSONReporter) add(r JSONRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output.Requests = append(f.output.Requests, r)
}

func (f *JSONReporter) RunFinished(result *runner.RunResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output.Collection = result.Collection
	f.output.RunID = result.RunID.String()
	f.output.Duration = float64(result.Duration.Milliseconds())
	f.output.Summary = JSONSummary{
		Total:     len(result.Results),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	}
	f.finished = true
}

// Flush writes the accumulated JSON output
func (f *JSONReporter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.finished {
		var s JSONSummary
		for _, r := range f.output.Requests {
			s.Total++
			switch {
			case r.Skipped:
				s.Skipped++
			case r.Succeeded:
				s.Succeeded++
			default:
				s.Failed++
			}
		}
		f.output.Summary = s
	}
	f.output.Time = time.Now().Format(time.RFC3339)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.output)
}
