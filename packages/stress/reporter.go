package stress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
)

// Reporter handles console output for load runs.
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
	dim    *color.Color
}

// ReporterOption configures the reporter.
type ReporterOption func(*Reporter)

// WithWriter sets the output writer.
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output.
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithNoProgress disables the live progress line.
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

// NewReporter creates a reporter writing to stdout by default.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{writer: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	r.green = color.New(color.FgGreen)
	r.red = color.New(color.FgRed)
	r.yellow = color.New(color.FgYellow)
	r.cyan = color.New(color.FgCyan)
	r.bold = color.New(color.Bold)
	r.dim = color.New(color.Faint)

	if r.noColor {
		for _, c := range []*color.Color{r.green, r.red, r.yellow, r.cyan, r.bold, r.dim} {
			c.DisableColor()
		}
	}

	return r
}

// Header prints the run banner.
func (r *Reporter) Header(scenarioName string, cfg *Config) {
	r.bold.Fprintf(r.writer, "strafe: %s\n", scenarioName)
	mode := "rate"
	detail := fmt.Sprintf("%.1f req/s", cfg.Rate)
	if cfg.Mode == VUMode {
		mode = "vu"
		detail = fmt.Sprintf("%d virtual users", cfg.VUs)
	}
	r.dim.Fprintf(r.writer, "  mode=%s (%s) duration=%s\n\n", mode, detail, cfg.Duration)
}

// Info prints an informational line.
func (r *Reporter) Info(format string, args ...any) {
	fmt.Fprintf(r.writer, format+"\n", args...)
}

// Error prints an error line.
func (r *Reporter) Error(format string, args ...any) {
	r.red.Fprintf(r.writer, format+"\n", args...)
}

// Progress rewrites the live progress line.
func (r *Reporter) Progress(stats CurrentStats, total time.Duration) {
	if r.noProgress {
		return
	}
	fmt.Fprintf(r.writer, "\r[%s/%s] %d reqs (%d errors) %.1f req/s p95=%s vus=%d   ",
		stats.Elapsed.Truncate(time.Second), total,
		stats.Requests, stats.Errors, stats.RPS, stats.P95.Truncate(time.Millisecond), stats.ActiveVUs)
}

// ClearProgress ends the progress line.
func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\r\n")
}

// Summary prints the final aggregate and threshold results.
func (r *Reporter) Summary(s *Summary, thresholds []ThresholdResult) {
	r.bold.Fprintf(r.writer, "\nSummary\n")
	fmt.Fprintf(r.writer, "  requests:  %d (%.1f req/s)\n", s.TotalRequests, s.RPS)
	fmt.Fprintf(r.writer, "  success:   %d (%.1f%%)\n", s.SuccessCount, s.SuccessRate*100)
	if s.ErrorCount > 0 {
		r.red.Fprintf(r.writer, "  errors:    %d (%.1f%%, %d timeouts)\n", s.ErrorCount, s.ErrorRate*100, s.TimeoutCount)
	} else {
		fmt.Fprintf(r.writer, "  errors:    0\n")
	}
	if s.NotModified > 0 {
		r.cyan.Fprintf(r.writer, "  304 hits:  %d\n", s.NotModified)
	}
	fmt.Fprintf(r.writer, "  latency:   p50=%s p95=%s p99=%s min=%s max=%s\n",
		s.P50.Truncate(time.Microsecond), s.P95.Truncate(time.Microsecond), s.P99.Truncate(time.Microsecond),
		s.Min.Truncate(time.Microsecond), s.Max.Truncate(time.Microsecond))

	if len(s.RequestBreakdown) > 1 {
		r.bold.Fprintf(r.writer, "\nPer request\n")
		names := make([]string, 0, len(s.RequestBreakdown))
		for name := range s.RequestBreakdown {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rs := s.RequestBreakdown[name]
			fmt.Fprintf(r.writer, "  %-30s %6d reqs %4d errors p95=%s\n",
				rs.Name, rs.Total, rs.Errors, rs.P95.Truncate(time.Microsecond))
		}
	}

	if len(thresholds) > 0 {
		r.bold.Fprintf(r.writer, "\nThresholds\n")
		for _, tr := range thresholds {
			if tr.Passed {
				r.green.Fprintf(r.writer, "  PASS %s %s (got %s)\n", tr.Name, tr.Expected, tr.Actual)
			} else {
				r.red.Fprintf(r.writer, "  FAIL %s %s (got %s)\n", tr.Name, tr.Expected, tr.Actual)
			}
		}
	}
}
