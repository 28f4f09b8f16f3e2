package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/livespec/packages/core/runner"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

// truncate shortens s to maxLen bytes, marking the cut.
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// ConsoleReporter streams run progress to a terminal.
type ConsoleReporter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleReporter)

func NewConsoleReporter(opts ...ConsoleOption) *ConsoleReporter {
	f := &ConsoleReporter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleReporter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleReporter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleReporter) {
		f.noColor = nc
	}
}

func (f *ConsoleReporter) RunStarted(name string, total int) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "\n%s\n\n", bold(fmt.Sprintf("Running: %s (%d requests)", name, total)))
}

func (f *ConsoleReporter) RequestStarted(index, total int, name string) {
	fmt.Fprintf(f.writer, "  [%d/%d] %s\n", index, total, name)
}

func (f *ConsoleReporter) RequestSucceeded(name string, entry *trace.Entry) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	status := fmt.Sprintf("%d %s", entry.Response.Status, entry.Response.StatusText)
	fmt.Fprintf(f.writer, "    %s %s %s\n", green("✓"), strings.TrimSpace(status), cyan(fmt.Sprintf("(%dms)", int64(entry.Time))))

	if f.verbose {
		fmt.Fprintf(f.writer, "      %s %s\n", entry.Request.Method, entry.Request.URL)
		if entry.Response.Content.Text != "" {
			fmt.Fprintf(f.writer, "      %s %s\n", entry.Response.Content.MimeType, truncate(entry.Response.Content.Text, 100))
		}
	}
}

func (f *ConsoleReporter) RequestFailed(name string, err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "    %s %s\n", red("✗"), red(fmt.Sprintf("Failed: %v", err)))
}

func (f *ConsoleReporter) RequestSkipped(name, reason string) {
	if !f.verbose {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(f.writer, "  %s %s (%s)\n", yellow("-"), name, reason)
}

func (f *ConsoleReporter) Warning(message string) {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(f.writer, "    %s %s\n", yellow("warning:"), message)
}

func (f *ConsoleReporter) RunFinished(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Requests: ")
	if result.Succeeded > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d succeeded", result.Succeeded)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Results))
	fmt.Fprintf(f.writer, "Time:     %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleReporter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleReporter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("livespec"), version)
}

// Info prints a plain status line, such as where an output file was written.
func (f *ConsoleReporter) Info(format string, args ...any) {
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", cyan("→"), fmt.Sprintf(format, args...))
}
