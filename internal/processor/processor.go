package processor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"shrinkray/internal/logging"
	"shrinkray/internal/services"
	"shrinkray/internal/session"
)

// Behavior selects what happens to queued jobs when the disk-space pause
// outlasts its timeout.
type Behavior string

const (
	BehaviorSkip  Behavior = "skip"
	BehaviorAbort Behavior = "abort"
)

// PressureSource reports resource pressure for admission gating.
type PressureSource interface {
	DiskLow(min uint64) bool
}

// CPUPressure is an optional PressureSource extension. Sources that
// implement it throttle admission while host CPU usage stays above the
// configured ceiling.
type CPUPressure interface {
	CPUHigh(pct float64) bool
}

// JobFunc executes one job attempt. report publishes fractional progress in
// [0, 1] into the pool's aggregate view.
type JobFunc func(ctx context.Context, job *session.Job, report func(float64)) error

// Outcome is one completed, skipped, or aborted job, delivered in completion
// order rather than submission order.
type Outcome struct {
	Job *session.Job
	Err error
	// Gated marks outcomes produced by the disk-space gate instead of an
	// actual execution attempt.
	Gated bool
}

// Hooks let the caller observe admission pauses.
type Hooks struct {
	OnPause  func(reason string)
	OnResume func()
}

// Config bounds the pool.
type Config struct {
	MaxConcurrent     int
	MinFreeBytes      uint64
	CPUHighPercent    float64
	PauseTimeout      time.Duration
	PausePollInterval time.Duration
	TimeoutBehavior   Behavior
}

// Pool runs jobs under a concurrency bound with disk-space admission gating
// and weighted aggregate progress.
type Pool struct {
	cfg      Config
	pressure PressureSource
	logger   *slog.Logger
	hooks    Hooks

	stopped atomic.Bool

	// gate state is touched only by the dispatcher goroutine.
	gatePaused  bool
	gateExpired bool

	mu       sync.Mutex
	weights  map[string]float64
	progress map[string]float64
}

// New builds a pool. pressure may be nil, which disables admission gating.
func New(cfg Config, pressure PressureSource, logger *slog.Logger, hooks Hooks) *Pool {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.PausePollInterval <= 0 {
		cfg.PausePollInterval = time.Second
	}
	if cfg.TimeoutBehavior == "" {
		cfg.TimeoutBehavior = BehaviorSkip
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		cfg:      cfg,
		pressure: pressure,
		logger:   logging.NewComponentLogger(logger, "processor"),
		hooks:    hooks,
		weights:  make(map[string]float64),
		progress: make(map[string]float64),
	}
}

// StopAdmission prevents further jobs from starting. In-flight jobs run to
// completion; jobs never admitted stay pending for a later resume.
func (p *Pool) StopAdmission() {
	p.stopped.Store(true)
}

// Run dispatches the jobs and returns a channel that yields one Outcome per
// executed or gate-skipped job, then closes. Jobs left unadmitted after
// StopAdmission or context cancellation produce no outcome.
func (p *Pool) Run(ctx context.Context, jobs []*session.Job, fn JobFunc) <-chan Outcome {
	p.registerWeights(jobs)

	out := make(chan Outcome)
	go func() {
		defer close(out)
		var wg sync.WaitGroup
		defer wg.Wait()
		sem := make(chan struct{}, p.cfg.MaxConcurrent)

		for _, job := range jobs {
			if p.stopped.Load() || ctx.Err() != nil {
				return
			}

			if err := p.waitForDisk(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				out <- Outcome{Job: job, Err: err, Gated: true}
				if p.cfg.TimeoutBehavior == BehaviorAbort {
					p.StopAdmission()
				}
				continue
			}

			if err := p.waitForCPU(ctx); err != nil {
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			if p.stopped.Load() {
				<-sem
				return
			}

			wg.Add(1)
			go func(job *session.Job) {
				defer wg.Done()
				defer func() { <-sem }()
				err := fn(ctx, job, func(fraction float64) {
					p.setProgress(job, fraction)
				})
				out <- Outcome{Job: job, Err: err}
			}(job)
		}
	}()
	return out
}

// waitForDisk blocks until free space is above the floor, the pause times
// out, or the context ends. A nil return admits the job. Once a skip-mode
// pause has timed out, later jobs in the same low-disk episode are gated
// without waiting again.
func (p *Pool) waitForDisk(ctx context.Context) error {
	if p.pressure == nil || p.cfg.MinFreeBytes == 0 {
		return nil
	}
	if !p.pressure.DiskLow(p.cfg.MinFreeBytes) {
		p.gateRecovered()
		return nil
	}
	if p.gateExpired {
		return services.Wrap(services.ErrDiskSpace, "processor", "admit",
			"pause timed out waiting for free space", nil)
	}

	if !p.gatePaused {
		p.gatePaused = true
		p.logger.Warn("disk space below floor, pausing admission",
			"min_free_bytes", p.cfg.MinFreeBytes,
			"pause_timeout", p.cfg.PauseTimeout.String(),
		)
		if p.hooks.OnPause != nil {
			p.hooks.OnPause("disk space below configured minimum")
		}
	}

	deadline := time.Now().Add(p.cfg.PauseTimeout)
	ticker := time.NewTicker(p.cfg.PausePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.pressure.DiskLow(p.cfg.MinFreeBytes) {
				p.gateRecovered()
				return nil
			}
			if p.cfg.PauseTimeout > 0 && time.Now().After(deadline) {
				if p.cfg.TimeoutBehavior == BehaviorSkip {
					p.gateExpired = true
				}
				return services.Wrap(services.ErrDiskSpace, "processor", "admit",
					"pause timed out waiting for free space", nil)
			}
		}
	}
}

// gateRecovered closes out a low-disk episode, firing OnResume once.
func (p *Pool) gateRecovered() {
	if !p.gatePaused {
		return
	}
	p.gatePaused = false
	p.gateExpired = false
	p.logger.Info("disk space recovered, resuming admission")
	if p.hooks.OnResume != nil {
		p.hooks.OnResume()
	}
}

// waitForCPU delays admission while CPU usage stays above the configured
// ceiling. The throttle has no timeout; encodes already running will bring
// usage back down.
func (p *Pool) waitForCPU(ctx context.Context) error {
	cpu, ok := p.pressure.(CPUPressure)
	if !ok || p.cfg.CPUHighPercent <= 0 || !cpu.CPUHigh(p.cfg.CPUHighPercent) {
		return nil
	}

	p.logger.Info("cpu above ceiling, throttling admission",
		"cpu_high_percent", p.cfg.CPUHighPercent,
	)
	ticker := time.NewTicker(p.cfg.PausePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !cpu.CPUHigh(p.cfg.CPUHighPercent) {
				return nil
			}
		}
	}
}

func (p *Pool) registerWeights(jobs []*session.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, job := range jobs {
		weight := job.EstimatedSeconds
		if weight <= 0 {
			weight = 1
		}
		p.weights[job.ID] = weight
		p.progress[job.ID] = job.ProgressFraction
	}
}

func (p *Pool) setProgress(job *session.Job, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	p.mu.Lock()
	p.progress[job.ID] = fraction
	p.mu.Unlock()
}

// Progress returns the duration-weighted aggregate completion fraction for
// every job registered with the pool.
func (p *Pool) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total, done float64
	for id, weight := range p.weights {
		total += weight
		done += weight * p.progress[id]
	}
	if total == 0 {
		return 0
	}
	return done / total
}

// MarkDone records a job as fully complete in the aggregate progress view.
func (p *Pool) MarkDone(job *session.Job) {
	p.setProgress(job, 1)
}
