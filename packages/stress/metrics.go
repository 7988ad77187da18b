package stress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	histMin = 1          // 1us
	histMax = 60_000_000 // 60s
)

// Metrics collects and aggregates load run metrics.
type Metrics struct {
	mu sync.RWMutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	errorRequests   atomic.Int64
	timeoutRequests atomic.Int64
	notModified     atomic.Int64

	// Latency histogram in microseconds.
	histogram *hdrhistogram.Histogram

	requestMetrics map[string]*RequestMetrics

	startTime time.Time
	endTime   time.Time

	activeVUs atomic.Int32
}

// RequestMetrics holds metrics for one request statement.
type RequestMetrics struct {
	Name      string
	Total     atomic.Int64
	Success   atomic.Int64
	Errors    atomic.Int64
	mu        sync.Mutex
	Histogram *hdrhistogram.Histogram
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		histogram:      hdrhistogram.New(histMin, histMax, 3),
		requestMetrics: make(map[string]*RequestMetrics),
	}
}

// Start marks the beginning of the run.
func (m *Metrics) Start() {
	m.startTime = time.Now()
}

// Stop marks the end of the run.
func (m *Metrics) Stop() {
	m.endTime = time.Now()
}

// Record records one request result.
func (m *Metrics) Record(name string, duration time.Duration, err error) {
	m.totalRequests.Add(1)
	if err != nil {
		m.errorRequests.Add(1)
	} else {
		m.successRequests.Add(1)
	}

	latencyUs := clampLatency(duration)
	m.mu.Lock()
	_ = m.histogram.RecordValue(latencyUs)
	m.mu.Unlock()

	if name != "" {
		rm := m.requestEntry(name)
		rm.Total.Add(1)
		if err != nil {
			rm.Errors.Add(1)
		} else {
			rm.Success.Add(1)
		}
		rm.mu.Lock()
		_ = rm.Histogram.RecordValue(latencyUs)
		rm.mu.Unlock()
	}
}

// RecordTimeout records a timed-out request.
func (m *Metrics) RecordTimeout(name string) {
	m.totalRequests.Add(1)
	m.timeoutRequests.Add(1)
	m.errorRequests.Add(1)

	if name != "" {
		rm := m.requestEntry(name)
		rm.Total.Add(1)
		rm.Errors.Add(1)
	}
}

// RecordNotModified counts a 304 revalidation hit. These are also recorded
// as successes via Record; the counter just surfaces how much the
// conditional-request cache saved.
func (m *Metrics) RecordNotModified() {
	m.notModified.Add(1)
}

func (m *Metrics) requestEntry(name string) *RequestMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.requestMetrics[name]
	if !ok {
		rm = &RequestMetrics{
			Name:      name,
			Histogram: hdrhistogram.New(histMin, histMax, 3),
		}
		m.requestMetrics[name] = rm
	}
	return rm
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < histMin {
		return histMin
	}
	if us > histMax {
		return histMax
	}
	return us
}

// IncrementActiveVUs increments the active virtual user count.
func (m *Metrics) IncrementActiveVUs() {
	m.activeVUs.Add(1)
}

// DecrementActiveVUs decrements the active virtual user count.
func (m *Metrics) DecrementActiveVUs() {
	m.activeVUs.Add(-1)
}

// ActiveVUs returns the current active virtual user count.
func (m *Metrics) ActiveVUs() int32 {
	return m.activeVUs.Load()
}

// CurrentStats is a point-in-time view used by the progress display.
type CurrentStats struct {
	Elapsed   time.Duration
	Requests  int64
	Errors    int64
	P95       time.Duration
	ActiveVUs int32
	RPS       float64
}

// GetCurrentStats captures live stats.
func (m *Metrics) GetCurrentStats() CurrentStats {
	elapsed := time.Since(m.startTime)
	total := m.totalRequests.Load()

	rps := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rps = float64(total) / secs
	}

	m.mu.RLock()
	p95 := time.Duration(m.histogram.ValueAtQuantile(95)) * time.Microsecond
	m.mu.RUnlock()

	return CurrentStats{
		Elapsed:   elapsed,
		Requests:  total,
		Errors:    m.errorRequests.Load(),
		P95:       p95,
		ActiveVUs: m.activeVUs.Load(),
		RPS:       rps,
	}
}

// Summary is the final aggregate of a run.
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64
	NotModified   int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration

	RequestBreakdown map[string]*RequestSummary
}

// RequestSummary is the per-request-statement aggregate.
type RequestSummary struct {
	Name    string
	Total   int64
	Success int64
	Errors  int64
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
}

// GetSummary computes the final summary.
func (m *Metrics) GetSummary() *Summary {
	end := m.endTime
	if end.IsZero() {
		end = time.Now()
	}
	duration := end.Sub(m.startTime)

	total := m.totalRequests.Load()
	errors := m.errorRequests.Load()

	rps := 0.0
	if secs := duration.Seconds(); secs > 0 {
		rps = float64(total) / secs
	}

	successRate, errorRate := 0.0, 0.0
	if total > 0 {
		successRate = float64(m.successRequests.Load()) / float64(total)
		errorRate = float64(errors) / float64(total)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Summary{
		Duration:      duration,
		TotalRequests: total,
		SuccessCount:  m.successRequests.Load(),
		ErrorCount:    errors,
		TimeoutCount:  m.timeoutRequests.Load(),
		NotModified:   m.notModified.Load(),
		RPS:           rps,
		SuccessRate:   successRate,
		ErrorRate:     errorRate,
		P50:           time.Duration(m.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:           time.Duration(m.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:           time.Duration(m.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Min:           time.Duration(m.histogram.Min()) * time.Microsecond,
		Max:           time.Duration(m.histogram.Max()) * time.Microsecond,
		Mean:          time.Duration(m.histogram.Mean()) * time.Microsecond,

		RequestBreakdown: make(map[string]*RequestSummary, len(m.requestMetrics)),
	}

	if total == 0 {
		s.Min = 0
	}

	for name, rm := range m.requestMetrics {
		rm.mu.Lock()
		s.RequestBreakdown[name] = &RequestSummary{
			Name:    name,
			Total:   rm.Total.Load(),
			Success: rm.Success.Load(),
			Errors:  rm.Errors.Load(),
			P50:     time.Duration(rm.Histogram.ValueAtQuantile(50)) * time.Microsecond,
			P95:     time.Duration(rm.Histogram.ValueAtQuantile(95)) * time.Microsecond,
			P99:     time.Duration(rm.Histogram.ValueAtQuantile(99)) * time.Microsecond,
		}
		rm.mu.Unlock()
	}

	return s
}

// ThresholdResult is the outcome of evaluating one threshold.
type ThresholdResult struct {
	Name     string
	Expected string
	Actual   string
	Passed   bool
}

// EvaluateThresholds checks the summary against configured thresholds.
func (m *Metrics) EvaluateThresholds(t Thresholds) []ThresholdResult {
	s := m.GetSummary()
	var results []ThresholdResult

	check := func(name string, limit, actual time.Duration) {
		if limit <= 0 {
			return
		}
		results = append(results, ThresholdResult{
			Name:     name,
			Expected: fmt.Sprintf("< %s", limit),
			Actual:   actual.String(),
			Passed:   actual < limit,
		})
	}
	check("p50", t.P50, s.P50)
	check("p95", t.P95, s.P95)
	check("p99", t.P99, s.P99)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "errors",
			Expected: fmt.Sprintf("< %.2f%%", t.ErrorRate*100),
			Actual:   fmt.Sprintf("%.2f%%", s.ErrorRate*100),
			Passed:   s.ErrorRate < t.ErrorRate,
		})
	}
	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "rps",
			Expected: fmt.Sprintf("> %.1f", t.MinRPS),
			Actual:   fmt.Sprintf("%.1f", s.RPS),
			Passed:   s.RPS > t.MinRPS,
		})
	}

	return results
}
