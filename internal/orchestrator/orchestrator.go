package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"shrinkray/internal/catalog"
	"shrinkray/internal/config"
	"shrinkray/internal/encoder"
	"shrinkray/internal/ledger"
	"shrinkray/internal/logging"
	"shrinkray/internal/metatool"
	"shrinkray/internal/notifications"
	"shrinkray/internal/processor"
	"shrinkray/internal/recovery"
	"shrinkray/internal/retry"
	"shrinkray/internal/services"
	"shrinkray/internal/session"
	"shrinkray/internal/validate"
)

// State labels the orchestrator's position in the batch lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateScanning     State = "scanning"
	StateProcessing   State = "processing"
	StatePaused       State = "paused"
	StateReporting    State = "reporting"
	StateCancelled    State = "cancelled"
	StateError        State = "error"
)

// FailureSummary is one terminally failed job in a batch report.
type FailureSummary struct {
	Title    string
	Identity string
	Category string
	Message  string
}

// BatchReport summarizes one completed batch run.
type BatchReport struct {
	SessionID         string
	SessionStatus     session.Status
	Succeeded         int
	Failed            int
	Skipped           int
	BytesSaved        int64
	Duration          time.Duration
	FailureCategories map[string]int
	Failures          []FailureSummary
}

// Validator accepts or rejects converted output.
type Validator interface {
	Validate(ctx context.Context, req validate.Request) validate.Result
}

// Deps collects the orchestrator's collaborators. Monitor and Metadata may
// be nil; Notifier defaults to a noop service and Validator to the
// ffprobe-backed implementation.
type Deps struct {
	Logger    *slog.Logger
	Store     *session.Store
	Ledger    *ledger.Ledger
	Catalog   catalog.Catalog
	Converter encoder.Converter
	Metadata  metatool.Tool
	Notifier  notifications.Service
	Monitor   processor.PressureSource
	Validator Validator
}

// Orchestrator owns the batch state machine: it admits candidates against
// the history ledger, drives the worker pool, routes failures through
// recovery and retry, and checkpoints the session after every transition.
type Orchestrator struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *session.Store
	history   *ledger.Ledger
	catalog   catalog.Catalog
	converter encoder.Converter
	metadata  metatool.Tool
	notifier  notifications.Service
	monitor   processor.PressureSource
	validator Validator
	retries   *retry.Manager
	recover   *recovery.Manager
	lock      *flock.Flock

	cancelled atomic.Bool

	// sessMu guards the active session and all job mutations, including
	// checkpoint writes, so workers never race the JSON encoder.
	sessMu sync.RWMutex
	state  State
	sess   *session.Session
	pool   *processor.Pool
	// gateAborted marks a disk-space pause that timed out under abort
	// behavior; finalize fails the session instead of leaving it resumable.
	gateAborted bool
}

// New builds an orchestrator from configuration and collaborators.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("orchestrator: nil config")
	}
	if deps.Store == nil || deps.Ledger == nil || deps.Catalog == nil || deps.Converter == nil {
		return nil, fmt.Errorf("orchestrator: store, ledger, catalog, and converter are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(config.Notifications{})
	}
	validator := deps.Validator
	if validator == nil {
		validator = validate.New(cfg.Validation, cfg.Processing.FFprobeBinary, deps.Metadata, logger)
	}

	return &Orchestrator{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "orchestrator"),
		store:     deps.Store,
		history:   deps.Ledger,
		catalog:   deps.Catalog,
		converter: deps.Converter,
		metadata:  deps.Metadata,
		notifier:  notifier,
		monitor:   deps.Monitor,
		validator: validator,
		retries:   retry.NewManager(cfg.Retry, cfg.Processing),
		recover:   recovery.NewManager(logger, cfg.Validation.Strict),
		lock:      flock.New(filepath.Join(cfg.Paths.StateDir, "shrinkray.lock")),
		state:     StateIdle,
	}, nil
}

// Cancel stops admission of new jobs. In-flight conversions run to
// completion and the session finalizes as Cancelled.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
	o.sessMu.RLock()
	pool := o.pool
	o.sessMu.RUnlock()
	if pool != nil {
		pool.StopAdmission()
	}
	o.logger.Info("cancellation requested, draining in-flight jobs")
}

// Snapshot is a point-in-time view of orchestrator progress.
type Snapshot struct {
	State     State
	SessionID string
	Status    session.Status
	Counters  session.Counters
	Progress  float64
	Pending   int
	Running   int
}

// Status reports the current state and session progress.
func (o *Orchestrator) Status() Snapshot {
	o.sessMu.Lock()
	defer o.sessMu.Unlock()

	snap := Snapshot{State: o.state}
	if o.sess != nil {
		o.sess.RecomputeCounters()
		snap.SessionID = o.sess.ID
		snap.Status = o.sess.Status
		snap.Counters = o.sess.Counters
		for _, job := range o.sess.Jobs {
			switch job.Status {
			case session.JobPending, session.JobRetrying:
				snap.Pending++
			case session.JobRunning:
				snap.Running++
			}
		}
	}
	if o.pool != nil {
		snap.Progress = o.pool.Progress()
	}
	return snap
}

func (o *Orchestrator) setState(state State) {
	o.sessMu.Lock()
	o.state = state
	o.sessMu.Unlock()
}

// withSession runs fn while holding the session mutation lock.
func (o *Orchestrator) withSession(fn func(sess *session.Session)) {
	o.sessMu.Lock()
	defer o.sessMu.Unlock()
	fn(o.sess)
}

// checkpoint persists the session under the mutation lock. Checkpoint
// failures are logged, not fatal: losing a checkpoint only widens the
// window a crash could re-run.
func (o *Orchestrator) checkpoint() {
	o.sessMu.Lock()
	defer o.sessMu.Unlock()
	o.checkpointLocked()
}

func (o *Orchestrator) checkpointLocked() {
	if o.sess == nil {
		return
	}
	if err := o.store.Save(o.sess); err != nil {
		o.logger.Error("session checkpoint failed",
			logging.FieldSessionID, o.sess.ID,
			"error", err,
		)
	}
}

// acquireLock takes the single-instance lock for the state directory.
func (o *Orchestrator) acquireLock() error {
	locked, err := o.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "orchestrator", "lock", "acquire instance lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrConfiguration, "orchestrator", "lock",
			fmt.Sprintf("another instance holds %s", o.lock.Path()), nil)
	}
	return nil
}

func (o *Orchestrator) releaseLock() {
	if err := o.lock.Unlock(); err != nil {
		o.logger.Warn("release instance lock failed", "error", err)
	}
}
