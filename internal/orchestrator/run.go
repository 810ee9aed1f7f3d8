package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shrinkray/internal/catalog"
	"shrinkray/internal/identity"
	"shrinkray/internal/logging"
	"shrinkray/internal/preflight"
	"shrinkray/internal/processor"
	"shrinkray/internal/recovery"
	"shrinkray/internal/services"
	"shrinkray/internal/session"
)

// Run scans the catalog, filters candidates against the history ledger,
// and processes the remaining jobs to completion.
func (o *Orchestrator) Run(ctx context.Context, filter catalog.Filter) (*BatchReport, error) {
	if err := o.acquireLock(); err != nil {
		return nil, err
	}
	defer o.releaseLock()

	o.setState(StateInitializing)
	if err := o.runPreflight(ctx); err != nil {
		o.setState(StateError)
		return nil, err
	}

	o.setState(StateScanning)
	sess, err := o.scan(ctx, filter)
	if err != nil {
		o.setState(StateError)
		return nil, err
	}

	return o.process(ctx, sess)
}

// Resume reloads a checkpointed session and processes only its non-terminal
// jobs. Jobs whose identity already has a successful ledger entry are
// recovered as succeeded without re-running.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) (*BatchReport, error) {
	if err := o.acquireLock(); err != nil {
		return nil, err
	}
	defer o.releaseLock()

	o.setState(StateInitializing)
	sess, err := o.store.Load(sessionID)
	if err != nil {
		o.setState(StateError)
		return nil, err
	}
	if sess.Status.Terminal() {
		o.setState(StateIdle)
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "resume",
			fmt.Sprintf("session %s is %s and cannot be resumed", sess.ID, sess.Status), nil)
	}
	if sess.Status == session.StatusPaused {
		if err := sess.Transition(session.StatusRunning); err != nil {
			o.setState(StateError)
			return nil, err
		}
	}

	for _, job := range sess.Jobs {
		if job.Status.Terminal() {
			continue
		}
		converted, err := o.history.IsConverted(ctx, job.Identity)
		if err != nil {
			o.logger.Warn("ledger cross-check failed",
				logging.FieldJobID, job.ID,
				"error", err,
			)
			continue
		}
		if converted {
			job.Status = session.JobSucceeded
			job.Warnings = append(job.Warnings, "recovered from history ledger on resume")
			continue
		}
		// Jobs stranded mid-flight by a crash start over.
		if job.Status == session.JobRunning || job.Status == session.JobRetrying {
			job.Status = session.JobPending
			job.ProgressFraction = 0
		}
	}

	o.logger.Info("resuming session",
		logging.FieldSessionID, sess.ID,
		"pending", len(sess.PendingJobs()),
	)
	return o.process(ctx, sess)
}

// RetryFailed re-admits terminally failed jobs from a checkpointed session
// as fresh jobs. An empty identity list re-admits every failed job; the
// failure record chain is preserved across the re-admission.
func (o *Orchestrator) RetryFailed(ctx context.Context, sessionID string, identities []string) (*BatchReport, error) {
	if err := o.acquireLock(); err != nil {
		return nil, err
	}
	defer o.releaseLock()

	o.setState(StateInitializing)
	sess, err := o.store.Load(sessionID)
	if err != nil {
		o.setState(StateError)
		return nil, err
	}

	wanted := make(map[string]bool, len(identities))
	for _, id := range identities {
		wanted[strings.TrimSpace(id)] = true
	}

	readmitted := 0
	for _, job := range sess.FailedJobs() {
		if len(wanted) > 0 && !wanted[job.Identity.String()] {
			continue
		}
		job.Status = session.JobPending
		job.RetryCount = 0
		job.Attempts = nil
		job.ProgressFraction = 0
		job.OutputBytes = 0
		readmitted++
	}
	if readmitted == 0 {
		o.setState(StateIdle)
		return nil, services.Wrap(services.ErrNotFound, "orchestrator", "retry failed",
			"no failed jobs matched", nil)
	}

	if sess.Status.Terminal() {
		// Terminal sessions are immutable; continue the work under a
		// fresh session that carries the re-admitted jobs.
		fresh := session.New()
		for _, job := range sess.Jobs {
			if job.Status == session.JobPending {
				fresh.Jobs = append(fresh.Jobs, job)
			}
		}
		sess = fresh
	}

	o.logger.Info("re-admitting failed jobs",
		logging.FieldSessionID, sess.ID,
		"count", readmitted,
	)
	return o.process(ctx, sess)
}

func (o *Orchestrator) runPreflight(ctx context.Context) error {
	results := preflight.Run(ctx, o.cfg)
	if preflight.Passed(results) {
		return nil
	}
	var details []string
	for _, failure := range preflight.Failures(results) {
		details = append(details, fmt.Sprintf("%s: %s", failure.Name, failure.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "orchestrator", "preflight",
		strings.Join(details, "; "), nil)
}

// scan lists candidates, derives content identities, and builds a session
// whose job list preserves catalog order. Already-converted identities are
// admitted as skipped jobs so the batch report can account for them.
func (o *Orchestrator) scan(ctx context.Context, filter catalog.Filter) (*session.Session, error) {
	candidates, err := o.catalog.ListCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	sess := session.New()
	seen := make(map[identity.ID]bool, len(candidates))
	for _, candidate := range candidates {
		id, err := o.identify(candidate)
		if err != nil {
			o.logger.Warn("candidate skipped, identity unavailable",
				logging.FieldSourcePath, candidate.Ref,
				"error", err,
			)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		job := session.NewJob(id, candidate.Title, candidate.Ref, candidate.CatalogID, candidate.SizeBytes)
		converted, err := o.history.IsConverted(ctx, id)
		if err != nil {
			return nil, err
		}
		if converted {
			job.Status = session.JobSkipped
			job.Warnings = append(job.Warnings, "already converted")
		}
		sess.Jobs = append(sess.Jobs, job)
	}

	o.logger.Info("scan complete",
		logging.FieldSessionID, sess.ID,
		"candidates", len(candidates),
		"admitted", len(sess.PendingJobs()),
		"skipped", len(sess.Jobs)-len(sess.PendingJobs()),
	)
	return sess, nil
}

func (o *Orchestrator) identify(candidate catalog.Descriptor) (identity.ID, error) {
	if id, ok := identity.FromCatalog(candidate.CatalogID); ok {
		return id, nil
	}
	return identity.FromFile(candidate.Ref)
}

// process drives the worker pool over the session's pending jobs, persists
// after every terminal transition, and finalizes the session.
func (o *Orchestrator) process(ctx context.Context, sess *session.Session) (*BatchReport, error) {
	start := time.Now()
	ctx = services.WithSessionID(ctx, sess.ID)
	pending := sess.PendingJobs()

	pool := processor.New(processor.Config{
		MaxConcurrent:     o.cfg.Processing.MaxConcurrent,
		MinFreeBytes:      o.cfg.MinFreeBytes(),
		CPUHighPercent:    o.cfg.Resources.CPUHighPercent,
		PauseTimeout:      time.Duration(o.cfg.Resources.PauseTimeout) * time.Second,
		PausePollInterval: time.Duration(o.cfg.Resources.SampleInterval) * time.Second,
		TimeoutBehavior:   processor.Behavior(o.cfg.Resources.PauseTimeoutBehavior),
	}, o.pressureSource(), o.logger, processor.Hooks{
		OnPause:  func(reason string) { o.pauseSession(ctx, reason) },
		OnResume: func() { o.resumeSession(ctx) },
	})

	o.sessMu.Lock()
	o.sess = sess
	o.pool = pool
	o.state = StateProcessing
	o.gateAborted = false
	o.checkpointLocked()
	o.sessMu.Unlock()

	if o.cancelled.Load() {
		pool.StopAdmission()
	}
	if len(pending) > 0 {
		if err := o.notifier.NotifyBatchStarted(ctx, len(pending)); err != nil {
			o.logger.Warn("batch start notification failed", "error", err)
		}
	}

	for outcome := range pool.Run(ctx, pending, o.executeJob) {
		o.recordOutcome(ctx, pool, outcome)
	}

	report := o.finalize(ctx, sess, start)
	return report, nil
}

// pressureSource exposes the resource monitor to the pool when one exists.
func (o *Orchestrator) pressureSource() processor.PressureSource {
	if o.monitor == nil {
		return nil
	}
	return o.monitor
}

func (o *Orchestrator) recordOutcome(ctx context.Context, pool *processor.Pool, outcome processor.Outcome) {
	job := outcome.Job
	o.withSession(func(sess *session.Session) {
		switch {
		case outcome.Gated && o.cfg.Resources.PauseTimeoutBehavior == string(processor.BehaviorAbort):
			job.Status = session.JobFailed
			job.RecordFailure(recovery.CategoryDiskSpace.String(), "abort", outcome.Err.Error())
			o.gateAborted = true
		case outcome.Gated:
			job.Status = session.JobSkipped
			job.RecordFailure(recovery.CategoryDiskSpace.String(), "skip", outcome.Err.Error())
		case outcome.Err != nil && errIsCancellation(outcome.Err):
			// Interrupted mid-flight; stays pending for resume.
			job.Status = session.JobPending
			job.ProgressFraction = 0
		case outcome.Err != nil && errors.Is(outcome.Err, services.ErrDiskSpace):
			job.Status = session.JobSkipped
		case outcome.Err != nil && errors.Is(outcome.Err, services.ErrNotAvailable):
			// Indexed but not locally present; a skip, not a failure.
			job.Status = session.JobSkipped
		case outcome.Err != nil:
			job.Status = session.JobFailed
		default:
			job.Status = session.JobSucceeded
		}
		if job.Status == session.JobSucceeded {
			job.ProgressFraction = 1
		}
		if job.Status.Terminal() {
			o.cleanupStaging(job)
		}
		o.checkpointLocked()
	})
	pool.MarkDone(job)

	if job.Status == session.JobFailed {
		if err := o.notifier.NotifyJobFailed(ctx, job.Title, job.LastErrorCategory); err != nil {
			o.logger.Warn("failure notification failed", "error", err)
		}
	}
}

func (o *Orchestrator) pauseSession(ctx context.Context, reason string) {
	o.withSession(func(sess *session.Session) {
		if sess == nil || sess.Status != session.StatusRunning {
			return
		}
		if err := sess.Transition(session.StatusPaused); err != nil {
			o.logger.Warn("pause transition rejected", "error", err)
			return
		}
		o.state = StatePaused
		o.checkpointLocked()
	})
	if err := o.notifier.NotifySessionPaused(ctx, reason); err != nil {
		o.logger.Warn("pause notification failed", "error", err)
	}
}

func (o *Orchestrator) resumeSession(ctx context.Context) {
	o.withSession(func(sess *session.Session) {
		if sess == nil || sess.Status != session.StatusPaused {
			return
		}
		if err := sess.Transition(session.StatusRunning); err != nil {
			o.logger.Warn("resume transition rejected", "error", err)
			return
		}
		o.state = StateProcessing
		o.checkpointLocked()
	})
	if err := o.notifier.NotifySessionResumed(ctx); err != nil {
		o.logger.Warn("resume notification failed", "error", err)
	}
}

// finalize settles the session status, emits the completion notification,
// and assembles the batch report.
func (o *Orchestrator) finalize(ctx context.Context, sess *session.Session, start time.Time) *BatchReport {
	o.setState(StateReporting)

	var report *BatchReport
	o.withSession(func(sess *session.Session) {
		final := sess.Status
		switch {
		case o.cancelled.Load():
			final = session.StatusCancelled
		case o.gateAborted:
			// Jobs never admitted after the abort fail with the rest.
			for _, job := range sess.PendingJobs() {
				job.Status = session.JobFailed
				job.RecordFailure(recovery.CategoryDiskSpace.String(), "abort",
					"admission aborted after disk-space pause timeout")
			}
			final = session.StatusFailed
		case len(sess.PendingJobs()) > 0:
			// Interrupted with work remaining, whether by an admission
			// abort or a hard shutdown. Leave the session resumable.
		default:
			final = session.StatusCompleted
		}

		if sess.Status != final && !sess.Status.Terminal() {
			if err := sess.Transition(final); err != nil {
				o.logger.Warn("final transition rejected",
					"from", string(sess.Status),
					"to", string(final),
					"error", err,
				)
			}
		}
		sess.RecomputeCounters()
		o.checkpointLocked()
		report = buildReport(sess, time.Since(start))
	})

	if err := o.notifier.NotifyBatchCompleted(ctx, report.Succeeded, report.Failed, report.Skipped, report.BytesSaved, report.Duration); err != nil {
		o.logger.Warn("batch completion notification failed", "error", err)
	}

	o.logger.Info("batch finished",
		logging.FieldSessionID, report.SessionID,
		"status", string(report.SessionStatus),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"bytes_saved", report.BytesSaved,
		"duration", report.Duration.String(),
	)

	if o.cancelled.Load() {
		o.setState(StateCancelled)
	} else {
		o.setState(StateIdle)
	}
	return report
}

func buildReport(sess *session.Session, duration time.Duration) *BatchReport {
	report := &BatchReport{
		SessionID:         sess.ID,
		SessionStatus:     sess.Status,
		Succeeded:         sess.Counters.Succeeded,
		Failed:            sess.Counters.Failed,
		Skipped:           sess.Counters.Skipped,
		BytesSaved:        sess.Counters.BytesSaved,
		Duration:          duration,
		FailureCategories: make(map[string]int),
	}
	for _, job := range sess.Jobs {
		if job.Status != session.JobFailed {
			continue
		}
		report.FailureCategories[job.LastErrorCategory]++
		summary := FailureSummary{
			Title:    job.Title,
			Identity: job.Identity.String(),
			Category: job.LastErrorCategory,
		}
		if n := len(job.Failures); n > 0 {
			summary.Message = job.Failures[n-1].Message
		}
		report.Failures = append(report.Failures, summary)
	}
	return report
}

// errIsCancellation distinguishes caller-driven shutdown from job failures.
func errIsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
