package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shrinkray/internal/catalog"
	"shrinkray/internal/encoder"
	"shrinkray/internal/fileutil"
	"shrinkray/internal/ledger"
	"shrinkray/internal/logging"
	"shrinkray/internal/media/ffprobe"
	"shrinkray/internal/recovery"
	"shrinkray/internal/services"
	"shrinkray/internal/session"
	"shrinkray/internal/validate"
)

// executeJob runs one job to a terminal result, driving the retry ladder
// when attempts fail. It is invoked by pool workers, so every session or
// job mutation goes through withSession.
func (o *Orchestrator) executeJob(ctx context.Context, job *session.Job, report func(float64)) error {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)

	o.withSession(func(*session.Session) {
		job.Status = session.JobRunning
		o.checkpointLocked()
	})
	logger.Info("job started",
		logging.FieldIdentity, job.Identity.String(),
		logging.FieldSourcePath, job.SourceRef,
	)

	opts := o.baseOptions()
	var strategy string
	for {
		err := o.attempt(ctx, job, opts, report)
		if strategy != "" {
			result := "succeeded"
			if err != nil {
				result = "failed"
			}
			o.withSession(func(*session.Session) {
				job.RecordAttempt(strategy, result)
				job.RetryCount = len(job.Attempts)
			})
		}
		if err == nil {
			logger.Info("job succeeded",
				logging.FieldAttempt, len(job.Attempts),
				logging.FieldOutputPath, job.OutputPath,
			)
			return nil
		}
		if errIsCancellation(err) || ctx.Err() != nil {
			return err
		}
		if errors.Is(err, services.ErrNotAvailable) {
			o.withSession(func(*session.Session) {
				job.RecordFailure(recovery.CategoryInput.String(), "skip", err.Error())
			})
			return err
		}

		category := o.recover.Handle(job.ID, err, o.encodePath(job))
		if category.PausesSession() {
			o.withSession(func(*session.Session) {
				job.RecordFailure(category.String(), "pause", err.Error())
			})
			return err
		}

		attemptIdx := len(job.Attempts)
		decision := o.retries.NextAction(job, category, err, opts)
		if !o.recover.Retryable(category, attemptIdx) || !decision.Retry {
			o.withSession(func(*session.Session) {
				job.RecordFailure(category.String(), "fail", err.Error())
			})
			o.recordFailedLedgerEntry(ctx, job)
			return err
		}

		o.withSession(func(*session.Session) {
			job.RecordFailure(category.String(), string(decision.Strategy), err.Error())
			job.Status = session.JobRetrying
			o.checkpointLocked()
		})
		logger.Info("retrying job",
			logging.FieldStrategy, string(decision.Strategy),
			logging.FieldCategory, category.String(),
			logging.FieldAttempt, attemptIdx+1,
			"delay", decision.Delay.String(),
		)

		if decision.Delay > 0 {
			select {
			case <-time.After(decision.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		strategy = string(decision.Strategy)
		opts = decision.Options
		o.withSession(func(*session.Session) {
			job.Status = session.JobRunning
		})
	}
}

// attempt runs one export, convert, validate, finalize pass.
func (o *Orchestrator) attempt(ctx context.Context, job *session.Job, opts encoder.Options, report func(float64)) error {
	if job.StagedPath == "" {
		// Each job stages into its own directory so identical basenames
		// from different source directories cannot collide mid-encode.
		staged, err := o.catalog.Export(ctx, catalog.Descriptor{
			CatalogID: job.CatalogID,
			Title:     job.Title,
			Ref:       job.SourceRef,
			SizeBytes: job.SourceBytes,
		}, filepath.Join(o.cfg.Paths.StagingDir, job.ID))
		if err != nil {
			return err
		}
		o.withSession(func(*session.Session) {
			job.StagedPath = staged
		})
	}

	if job.EstimatedSeconds == 0 {
		if probe, err := ffprobe.Inspect(ctx, o.cfg.Processing.FFprobeBinary, job.StagedPath); err == nil {
			o.withSession(func(*session.Session) {
				job.EstimatedSeconds = probe.DurationSeconds()
			})
		}
	}
	opts.DurationHint = time.Duration(job.EstimatedSeconds * float64(time.Second))

	encodePath := o.encodePath(job)
	encodeCtx := ctx
	if timeout := time.Duration(o.cfg.Processing.EncodeTimeout) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		encodeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome, err := o.converter.Convert(encodeCtx, job.StagedPath, encodePath, opts, func(update encoder.ProgressUpdate) {
		report(update.Fraction * 0.9)
	})
	if err != nil {
		if errors.Is(encodeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return services.Wrap(services.ErrTimeout, "encoder", "convert", "encode timeout elapsed", err)
		}
		return err
	}
	report(0.9)

	result := o.validator.Validate(ctx, validate.Request{
		SourcePath:  job.StagedPath,
		OutputPath:  encodePath,
		SourceBytes: job.SourceBytes,
		OutputBytes: outcome.OutputBytes,
	})
	if len(result.Warnings) > 0 {
		o.withSession(func(*session.Session) {
			job.Warnings = append(job.Warnings, result.Warnings...)
		})
	}
	if err := result.Err(); err != nil {
		return err
	}

	if o.metadata != nil {
		if err := o.metadata.Apply(ctx, job.StagedPath, encodePath); err != nil {
			return err
		}
	}
	report(0.95)

	finalPath := o.outputPath(job)
	if err := moveFile(encodePath, finalPath); err != nil {
		return services.Wrap(nil, "orchestrator", "finalize", "move output into place", err)
	}
	outputBytes := outcome.OutputBytes
	if outputBytes == 0 {
		if info, statErr := os.Stat(finalPath); statErr == nil {
			outputBytes = info.Size()
		}
	}

	entry := ledger.Entry{
		Identity:    job.Identity,
		OutputPath:  finalPath,
		SourceBytes: job.SourceBytes,
		OutputBytes: outputBytes,
		Outcome:     ledger.OutcomeSucceeded,
	}
	if job.SourceBytes > 0 {
		entry.Ratio = float64(outputBytes) / float64(job.SourceBytes)
	}
	if err := o.history.Record(ctx, entry); err != nil {
		if !errors.Is(err, ledger.ErrDuplicate) {
			return fmt.Errorf("record conversion: %w", err)
		}
		o.withSession(func(*session.Session) {
			job.Warnings = append(job.Warnings, "conversion already recorded for this identity")
		})
	}

	o.withSession(func(*session.Session) {
		job.OutputPath = finalPath
		job.OutputBytes = outputBytes
	})
	report(1)
	return nil
}

func (o *Orchestrator) recordFailedLedgerEntry(ctx context.Context, job *session.Job) {
	err := o.history.Record(ctx, ledger.Entry{
		Identity:    job.Identity,
		SourceBytes: job.SourceBytes,
		Outcome:     ledger.OutcomeFailed,
	})
	if err != nil {
		o.logger.Warn("failure ledger entry not recorded",
			logging.FieldJobID, job.ID,
			"error", err,
		)
	}
}

func (o *Orchestrator) baseOptions() encoder.Options {
	opts := encoder.Options{
		Family:  encoder.Family(o.cfg.Processing.EncoderFamily),
		Quality: o.cfg.Processing.Quality,
		Preset:  o.cfg.Processing.Preset,
	}
	if opts.Family == encoder.FamilyHardware {
		opts.Codec = o.cfg.Processing.HardwareCodec
	} else {
		opts.Family = encoder.FamilySoftware
		opts.Codec = o.cfg.Processing.VideoCodec
	}
	return opts
}

// cleanupStaging drops the per-job staged copy and any in-progress encode
// output once the job is terminal.
// The holder must already be inside withSession.
func (o *Orchestrator) cleanupStaging(job *session.Job) {
	if job.StagedPath == "" {
		return
	}
	_ = fileutil.RemoveIfExists(job.StagedPath)
	_ = fileutil.RemoveIfExists(o.encodePath(job))
	if dir := filepath.Dir(job.StagedPath); dir != filepath.Clean(o.cfg.Paths.StagingDir) {
		_ = os.Remove(dir)
	}
	job.StagedPath = ""
}

// encodePath is the in-progress output location inside the staging area.
func (o *Orchestrator) encodePath(job *session.Job) string {
	return filepath.Join(o.cfg.Paths.StagingDir, job.ID+".converting.mp4")
}

// outputPath derives the final location from the source name, appending a
// short job suffix when the name is already taken.
func (o *Orchestrator) outputPath(job *session.Job) string {
	base := strings.TrimSuffix(filepath.Base(job.SourceRef), filepath.Ext(job.SourceRef))
	if base == "" {
		base = job.ID
	}
	candidate := filepath.Join(o.cfg.Paths.OutputDir, base+".mp4")
	if candidate == job.OutputPath {
		return candidate
	}
	if _, err := os.Stat(candidate); err == nil {
		suffix := job.ID
		if len(suffix) > 8 {
			suffix = suffix[:8]
		}
		candidate = filepath.Join(o.cfg.Paths.OutputDir, base+"-"+suffix+".mp4")
	}
	return candidate
}

// moveFile renames within a filesystem and falls back to copy-and-remove
// across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
