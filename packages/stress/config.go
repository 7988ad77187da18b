// Package stress drives scenario execution under load: virtual users or a
// fixed request rate, with latency histograms, thresholds and live
// reporting. Each virtual user owns a session clone, so captures from one
// user's responses never leak into another's requests.
package stress

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExecutionMode defines how requests are scheduled.
type ExecutionMode int

const (
	// RateMode sends requests at a constant rate (requests per second).
	RateMode ExecutionMode = iota
	// VUMode runs virtual users that loop through the scenario with think
	// time between requests.
	VUMode
)

// Config holds all configuration for a load run.
type Config struct {
	Mode       ExecutionMode
	Duration   time.Duration
	Rate       float64       // requests per second (RateMode)
	VUs        int           // number of virtual users (VUMode)
	MaxVUs     int           // max in-flight requests
	ThinkTime  time.Duration // default time between requests per VU
	RampUp     time.Duration // linear ramp-up time
	Thresholds Thresholds
}

// Thresholds defines pass/fail criteria for a run.
type Thresholds struct {
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	ErrorRate float64 // maximum error rate, 0.0 - 1.0
	MinRPS    float64
}

// HasThresholds reports whether any threshold is set.
func (t Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:     RateMode,
		Duration: 30 * time.Second,
		Rate:     10,
		MaxVUs:   100,
	}
}

// Validate checks the config for inconsistencies.
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if c.Mode == RateMode && c.Rate <= 0 {
		return fmt.Errorf("rate must be positive in rate mode")
	}
	if c.Mode == VUMode && c.VUs <= 0 {
		return fmt.Errorf("VUs must be positive in VU mode")
	}
	if c.MaxVUs < 1 {
		return fmt.Errorf("maxVUs must be at least 1")
	}
	if c.RampUp < 0 {
		return fmt.Errorf("rampUp cannot be negative")
	}
	if c.RampUp > c.Duration {
		return fmt.Errorf("rampUp cannot exceed duration")
	}
	return nil
}

// ParseThresholds parses a threshold string like "p95<200ms,errors<1%".
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds
	if strings.TrimSpace(s) == "" {
		return t, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		var name, value string

		switch {
		case strings.Contains(part, "<"):
			fields := strings.SplitN(part, "<", 2)
			name, value = strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		case strings.Contains(part, ">"):
			fields := strings.SplitN(part, ">", 2)
			name, value = strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		default:
			return t, fmt.Errorf("invalid threshold %q", part)
		}

		switch strings.ToLower(name) {
		case "p50", "p95", "p99":
			d, err := time.ParseDuration(value)
			if err != nil {
				return t, fmt.Errorf("invalid duration in threshold %q: %w", part, err)
			}
			switch strings.ToLower(name) {
			case "p50":
				t.P50 = d
			case "p95":
				t.P95 = d
			case "p99":
				t.P99 = d
			}
		case "errors":
			value = strings.TrimSuffix(value, "%")
			rate, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return t, fmt.Errorf("invalid error rate in threshold %q: %w", part, err)
			}
			t.ErrorRate = rate / 100
		case "rps":
			rps, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return t, fmt.Errorf("invalid rps in threshold %q: %w", part, err)
			}
			t.MinRPS = rps
		default:
			return t, fmt.Errorf("unknown threshold %q", name)
		}
	}

	return t, nil
}
