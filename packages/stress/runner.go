package stress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/strafehq/strafe/packages/cache"
	"github.com/strafehq/strafe/packages/capture"
	protocol "github.com/strafehq/strafe/packages/config"
	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/core/session"
	"github.com/strafehq/strafe/packages/httpclient"
	"github.com/strafehq/strafe/packages/request"
)

// Runner executes a scenario under load. It owns the two run-scoped caches:
// the HTTP/2 capability cache and the response validator cache, shared by
// every virtual user and written by the transport as responses arrive.
type Runner struct {
	config    *Config
	protocol  *protocol.Config
	client    *httpclient.Client
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
	base      *session.Session

	caps       *cache.Http2Cache
	validators *cache.ValidatorCache

	file *scenario.File
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithClient sets the HTTP client.
func WithClient(client *httpclient.Client) RunnerOption {
	return func(r *Runner) {
		r.client = client
	}
}

// WithReporter sets the reporter.
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithProtocolConfig sets the protocol configuration.
func WithProtocolConfig(cfg *protocol.Config) RunnerOption {
	return func(r *Runner) {
		r.protocol = cfg
	}
}

// WithSession sets the base session cloned per virtual user.
func WithSession(s *session.Session) RunnerOption {
	return func(r *Runner) {
		r.base = s
	}
}

// NewRunner creates a load runner.
func NewRunner(config *Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:     config,
		metrics:    NewMetrics(),
		scheduler:  NewScheduler(config),
		caps:       cache.NewHttp2Cache(),
		validators: cache.NewValidatorCache(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.protocol == nil {
		r.protocol = protocol.DefaultConfig()
	}
	if r.base == nil {
		r.base = session.New()
	}
	if r.reporter == nil {
		r.reporter = NewReporter()
	}
	if r.client == nil {
		clientOpts := httpclient.FromConfig(r.protocol)
		clientOpts = append(clientOpts, httpclient.WithCapabilityCache(r.caps))
		if r.protocol.RequestCaching {
			clientOpts = append(clientOpts, httpclient.WithValidatorCache(r.validators))
		}
		r.client = httpclient.NewClient(clientOpts...)
	}

	return r
}

// Load builds the request plans for a parsed scenario. A declaration error
// (body plus multipart parts, for example) fails here, before any load is
// generated.
func (r *Runner) Load(file *scenario.File) error {
	r.file = file
	r.base.SetAll(file.Variables)

	for _, req := range file.Requests {
		plan, err := request.NewPlan(req, r.protocol,
			request.WithBaseDir(file.BaseDir),
			request.WithCapabilityCache(r.caps),
			request.WithValidatorCache(r.validators),
		)
		if err != nil {
			return fmt.Errorf("loading scenario: %w", err)
		}

		r.scheduler.AddRequest(&ScheduledRequest{
			Plan:   plan,
			Name:   req.Name,
			Weight: req.Weight,
			Think:  time.Duration(req.ThinkMs) * time.Millisecond,
		})
	}

	return nil
}

// Result holds the outcome of a load run.
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// Run executes the load run until the configured duration elapses.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if r.file == nil {
		return nil, fmt.Errorf("no scenario loaded")
	}

	r.reporter.Header(r.file.Name, r.config)
	r.metrics.Start()

	ctx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	progressDone := make(chan struct{})
	go r.progressLoop(ctx, progressDone)

	if r.config.Mode == VUMode {
		r.runVUMode(ctx)
	} else {
		r.runRateMode(ctx)
	}

	r.metrics.Stop()
	close(progressDone)
	r.reporter.ClearProgress()

	summary := r.metrics.GetSummary()
	var thresholdResults []ThresholdResult
	if r.config.Thresholds.HasThresholds() {
		thresholdResults = r.metrics.EvaluateThresholds(r.config.Thresholds)
	}

	r.reporter.Summary(summary, thresholdResults)

	passed := true
	for _, tr := range thresholdResults {
		if !tr.Passed {
			passed = false
			break
		}
	}

	return &Result{Summary: summary, Thresholds: thresholdResults, Passed: passed}, nil
}

// runRateMode fires requests at the configured rate. All executions share
// the base session; per-user capture isolation needs VU mode.
func (r *Runner) runRateMode(ctx context.Context) {
	var wg sync.WaitGroup
	startTime := time.Now()

	var rampUpTicker *time.Ticker
	if r.config.RampUp > 0 {
		rampUpTicker = time.NewTicker(100 * time.Millisecond)
		defer rampUpTicker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		if rampUpTicker != nil {
			select {
			case <-rampUpTicker.C:
				r.scheduler.UpdateRate(r.scheduler.CurrentRate(time.Since(startTime)))
			default:
			}
		}

		if err := r.scheduler.Wait(ctx); err != nil {
			wg.Wait()
			return
		}

		sched := r.scheduler.SelectRequest()
		if sched == nil {
			continue
		}

		if err := r.scheduler.Acquire(ctx); err != nil {
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(sched *ScheduledRequest) {
			defer wg.Done()
			defer r.scheduler.Release()
			_ = r.execute(ctx, r.base, sched)
		}(sched)
	}
}

// runVUMode runs the virtual user pool, scaling it during ramp-up.
func (r *Runner) runVUMode(ctx context.Context) {
	pool := NewVUPool(r.scheduler, r.config, r.metrics, r.base, r.execute)
	pool.Start(ctx)

	if r.config.RampUp > 0 {
		rampUpTicker := time.NewTicker(100 * time.Millisecond)
		startTime := time.Now()

		go func() {
			defer rampUpTicker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-rampUpTicker.C:
					pool.Scale(r.scheduler.CurrentVUs(time.Since(startTime)))
				}
			}
		}()
	}

	<-ctx.Done()
	pool.Stop()
	pool.Wait()
}

// execute runs one request for one virtual user: assemble the descriptor
// against the user's session, send it, record metrics, and feed captures
// back into the session for the user's next requests.
func (r *Runner) execute(ctx context.Context, vu *session.Session, sched *ScheduledRequest) error {
	d, err := sched.Plan.Build(vu)
	if err != nil {
		r.metrics.Record(sched.Name, 0, err)
		return err
	}

	reqCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	resp, err := r.client.DoContext(reqCtx, d)
	if err != nil {
		if reqCtx.Err() != nil {
			r.metrics.RecordTimeout(sched.Name)
		} else {
			r.metrics.Record(sched.Name, 0, err)
		}
		return err
	}

	if resp.NotModified() {
		r.metrics.RecordNotModified()
	}

	var recordErr error
	if !resp.IsSuccess() && !resp.NotModified() {
		recordErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	r.metrics.Record(sched.Name, resp.Duration, recordErr)

	capture.Apply(vu, resp, sched.Plan.Spec().Captures)
	return recordErr
}

func (r *Runner) progressLoop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reporter.Progress(r.metrics.GetCurrentStats(), r.config.Duration)
		}
	}
}
