package stress

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/strafehq/strafe/packages/core/session"
	"github.com/strafehq/strafe/packages/request"
)

// ScheduledRequest pairs a request plan with its scheduling attributes.
type ScheduledRequest struct {
	Plan   *request.Plan
	Name   string
	Weight int
	Think  time.Duration
}

// Scheduler manages request scheduling: rate limiting in rate mode,
// weighted selection across request statements, and the in-flight
// concurrency cap.
type Scheduler struct {
	config  *Config
	limiter *rate.Limiter
	sem     chan struct{}

	mu          sync.Mutex
	requests    []*ScheduledRequest
	weights     []int
	totalWeight int
}

// NewScheduler creates a scheduler for the given config.
func NewScheduler(config *Config) *Scheduler {
	s := &Scheduler{config: config}

	if config.Mode == RateMode && config.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	maxVUs := config.MaxVUs
	if maxVUs < 1 {
		maxVUs = 100
	}
	s.sem = make(chan struct{}, maxVUs)

	return s
}

// AddRequest registers a request plan for scheduling.
func (s *Scheduler) AddRequest(sched *ScheduledRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, sched)

	weight := sched.Weight
	if weight < 1 {
		weight = 1
	}
	s.weights = append(s.weights, weight)
	s.totalWeight += weight
}

// SelectRequest picks a request by weight.
func (s *Scheduler) SelectRequest() *ScheduledRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.requests) == 0 {
		return nil
	}
	if len(s.requests) == 1 {
		return s.requests[0]
	}

	r := rand.Intn(s.totalWeight)
	cumulative := 0
	for i, w := range s.weights {
		cumulative += w
		if r < cumulative {
			return s.requests[i]
		}
	}
	return s.requests[len(s.requests)-1]
}

// Requests returns the registered requests in declaration order.
func (s *Scheduler) Requests() []*ScheduledRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ScheduledRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Wait blocks on the rate limiter in rate mode.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

// Acquire takes a slot from the concurrency semaphore.
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the semaphore.
func (s *Scheduler) Release() {
	<-s.sem
}

// CurrentRate returns the target rate for the elapsed time, linearly ramped.
func (s *Scheduler) CurrentRate(elapsed time.Duration) float64 {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.Rate
	}
	return s.config.Rate * (float64(elapsed) / float64(s.config.RampUp))
}

// CurrentVUs returns the target virtual user count for the elapsed time.
func (s *Scheduler) CurrentVUs(elapsed time.Duration) int {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.VUs
	}
	return int(float64(s.config.VUs) * (float64(elapsed) / float64(s.config.RampUp)))
}

// UpdateRate adjusts the rate limiter during ramp-up.
func (s *Scheduler) UpdateRate(newRate float64) {
	if s.limiter != nil && newRate > 0 {
		s.limiter.SetLimit(rate.Limit(newRate))
	}
}

// Executor runs one scheduled request for one virtual user.
type Executor func(ctx context.Context, vu *session.Session, sched *ScheduledRequest) error

// VURunner is one virtual user looping through scheduled requests with its
// own session.
type VURunner struct {
	id        int
	scheduler *Scheduler
	config    *Config
	metrics   *Metrics
	executor  Executor
	sess      *session.Session
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
}

// NewVURunner creates a virtual user with its own session clone.
func NewVURunner(id int, scheduler *Scheduler, config *Config, metrics *Metrics, base *session.Session, executor Executor) *VURunner {
	return &VURunner{
		id:        id,
		scheduler: scheduler,
		config:    config,
		metrics:   metrics,
		executor:  executor,
		sess:      base.Clone(),
	}
}

// Start launches the virtual user loop.
func (v *VURunner) Start(ctx context.Context, wg *sync.WaitGroup) {
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.wg = wg

	wg.Add(1)
	go v.run()
}

// Stop cancels the virtual user loop.
func (v *VURunner) Stop() {
	if v.cancel != nil {
		v.cancel()
	}
}

func (v *VURunner) run() {
	defer v.wg.Done()

	v.metrics.IncrementActiveVUs()
	defer v.metrics.DecrementActiveVUs()

	for {
		select {
		case <-v.ctx.Done():
			return
		default:
		}

		sched := v.scheduler.SelectRequest()
		if sched == nil {
			return
		}

		if err := v.scheduler.Acquire(v.ctx); err != nil {
			return
		}
		_ = v.executor(v.ctx, v.sess, sched)
		v.scheduler.Release()

		think := v.config.ThinkTime
		if sched.Think > 0 {
			think = sched.Think
		}
		if think > 0 {
			select {
			case <-v.ctx.Done():
				return
			case <-time.After(think):
			}
		}
	}
}

// VUPool manages a scalable pool of virtual users.
type VUPool struct {
	scheduler *Scheduler
	config    *Config
	metrics   *Metrics
	executor  Executor
	base      *session.Session

	mu      sync.Mutex
	runners []*VURunner
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewVUPool creates a pool cloning sessions from the given base.
func NewVUPool(scheduler *Scheduler, config *Config, metrics *Metrics, base *session.Session, executor Executor) *VUPool {
	return &VUPool{
		scheduler: scheduler,
		config:    config,
		metrics:   metrics,
		executor:  executor,
		base:      base,
	}
}

// Start launches the initial virtual users.
func (p *VUPool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	initial := p.scheduler.CurrentVUs(0)
	if initial < 1 {
		initial = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < initial; i++ {
		p.addVULocked()
	}
}

// Scale adjusts the number of running virtual users.
func (p *VUPool) Scale(target int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := len(p.runners)
	for i := current; i < target; i++ {
		p.addVULocked()
	}
	for i := current - 1; i >= target && i >= 0; i-- {
		p.runners[i].Stop()
		p.runners = p.runners[:i]
	}
}

func (p *VUPool) addVULocked() {
	runner := NewVURunner(len(p.runners), p.scheduler, p.config, p.metrics, p.base, p.executor)
	runner.Start(p.ctx, &p.wg)
	p.runners = append(p.runners, runner)
}

// Stop cancels all virtual users.
func (p *VUPool) Stop() {
	p.mu.Lock()
	for _, r := range p.runners {
		r.Stop()
	}
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until every virtual user has exited.
func (p *VUPool) Wait() {
	p.wg.Wait()
}

// Count returns the number of running virtual users.
func (p *VUPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runners)
}
