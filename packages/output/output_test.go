package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/livespec/packages/core/runner"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

func sampleEntry() *trace.Entry {
	return &trace.Entry{
		Time:    12.7,
		Request: trace.Request{Method: "GET", URL: "https://api.example.com/users"},
		Response: trace.Response{
			Status:     200,
			StatusText: "OK",
			Content:    trace.Content{MimeType: "application/json", Text: `[{"id":1}]`},
		},
	}
}

func sampleResult() *runner.RunResult {
	failure := &runner.ExecutionError{Request: "Trace it", Err: fmt.Errorf("%w: %q", runner.ErrUnsupportedMethod, "TRACE")}
	return &runner.RunResult{
		Collection: "Users API",
		RunID:      uuid.MustParse("6f1c0a52-3a4e-4c1b-9d59-1f1f3f6c2b10"),
		Duration:   1500 * time.Millisecond,
		Succeeded:  1,
		Failed:     1,
		Skipped:    1,
		Results: []*runner.RequestResult{
			{Name: "List users", Entry: sampleEntry()},
			{Name: "Trace it", Folders: []string{"Admin"}, Error: failure},
			{Name: "Other", Skipped: true, SkipReason: "filtered out"},
		},
	}
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(WithWriter(&buf), WithNoColor(true))

	result := sampleResult()
	r.RunStarted("Users API", 3)
	r.RequestStarted(1, 3, "List users")
	r.RequestSucceeded("List users", sampleEntry())
	r.RequestStarted(2, 3, "Trace it")
	r.RequestFailed("Trace it", result.Results[1].Error)
	r.RequestSkipped("Other", "filtered out")
	r.Warning("unresolved variable: token")
	r.RunFinished(result)

	out := buf.String()
	assert.Contains(t, out, "Running: Users API (3 requests)")
	assert.Contains(t, out, "[1/3] List users")
	assert.Contains(t, out, "✓ 200 OK (12ms)")
	assert.Contains(t, out, "✗ Failed: request \"Trace it\": unsupported method")
	assert.Contains(t, out, "warning: unresolved variable: token")
	assert.Contains(t, out, "Requests: 1 succeeded, 1 failed, 1 skipped, 3 total")
	assert.Contains(t, out, "1500ms")
	assert.NotContains(t, out, "Other", "skips are only shown in verbose mode")
	assert.NotContains(t, out, "https://api.example.com/users")
}

func TestConsoleReporter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	r.RequestSucceeded("List users", sampleEntry())
	r.RequestSkipped("Other", "filtered out")

	out := buf.String()
	assert.Contains(t, out, "GET https://api.example.com/users")
	assert.Contains(t, out, `application/json [{"id":1}]`)
	assert.Contains(t, out, "- Other (filtered out)")
}

func TestConsoleReporter_HeaderAndError(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(WithWriter(&buf), WithNoColor(true))

	r.FormatHeader("1.0.0")
	r.FormatError(errors.New("boom"))
	r.Info("wrote %s", "out.har")

	assert.Equal(t, "livespec 1.0.0\nError: boom\n→ wrote out.har\n", buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(JSONWithWriter(&buf))
	result := sampleResult()

	r.RunStarted("Users API", 3)
	r.RequestStarted(1, 3, "List users")
	r.RequestSucceeded("List users", sampleEntry())
	r.RequestFailed("Trace it", result.Results[1].Error)
	r.RequestSkipped("Other", "filtered out")
	r.Warning("unresolved variable: token")
	r.RunFinished(result)
	require.NoError(t, r.Flush())

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "Users API", out.Collection)
	assert.Equal(t, "6f1c0a52-3a4e-4c1b-9d59-1f1f3f6c2b10", out.RunID)
	assert.Equal(t, JSONSummary{Total: 3, Succeeded: 1, Failed: 1, Skipped: 1}, out.Summary)
	assert.Equal(t, float64(1500), out.Duration)
	assert.Equal(t, []string{"unresolved variable: token"}, out.Warnings)

	require.Len(t, out.Requests, 3)
	assert.True(t, out.Requests[0].Succeeded)
	require.NotNil(t, out.Requests[0].Response)
	assert.Equal(t, 200, out.Requests[0].Response.Status)
	assert.Equal(t, 12.7, out.Requests[0].Response.Duration)
	assert.Contains(t, out.Requests[1].Error, "unsupported method")
	assert.True(t, out.Requests[2].Skipped)
}

func TestJSONReporter_FlushWithoutFinish(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(JSONWithWriter(&buf))
	r.RequestSucceeded("a", sampleEntry())
	r.RequestFailed("b", errors.New("x"))
	require.NoError(t, r.Flush())

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, JSONSummary{Total: 2, Succeeded: 1, Failed: 1}, out.Summary)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(2*time.Second))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal([]byte(strings.SplitN(out, "\n", 2)[1]), &suites))

	assert.Equal(t, "livespec", suites.Name)
	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)
	require.Len(t, suites.TestSuites, 1)

	cases := suites.TestSuites[0].TestCases
	require.Len(t, cases, 3)
	assert.Equal(t, "Users API", cases[0].ClassName)
	assert.InDelta(t, 0.0127, cases[0].Time, 1e-9)
	assert.Equal(t, "Users API.Admin", cases[1].ClassName)
	require.NotNil(t, cases[1].Error)
	assert.Equal(t, "UnsupportedMethod", cases[1].Error.Type)
	require.NotNil(t, cases[2].Skipped)
	assert.Equal(t, "filtered out", cases[2].Skipped.Message)
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "UnsupportedRequestForm", errorType(&runner.ExecutionError{Err: runner.ErrUnsupportedRequestForm}))
	assert.Equal(t, "TransportError", errorType(fmt.Errorf("%w: refused", runner.ErrTransport)))
	assert.Equal(t, "Error", errorType(errors.New("other")))
}
