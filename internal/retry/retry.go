package retry

import (
	"errors"
	"time"

	"shrinkray/internal/config"
	"shrinkray/internal/encoder"
	"shrinkray/internal/recovery"
	"shrinkray/internal/services"
	"shrinkray/internal/session"
)

// Strategy tags one stage of the retry escalation ladder.
type Strategy string

const (
	StrategySameSettings  Strategy = "same_settings"
	StrategySwitchEncoder Strategy = "switch_encoder"
	StrategyAdjustQuality Strategy = "adjust_quality"
	StrategyFinalAttempt  Strategy = "final_attempt"
)

// escalation is the fixed stage order. Stages are never reordered and never
// repeated within one job.
var escalation = []Strategy{
	StrategySameSettings,
	StrategySwitchEncoder,
	StrategyAdjustQuality,
	StrategyFinalAttempt,
}

func stageIndex(s Strategy) int {
	for i, stage := range escalation {
		if stage == s {
			return i
		}
	}
	return 0
}

// finalQualityCeiling caps how far quality coarsening may push the encoder
// quality parameter (higher means lower fidelity).
const finalQualityCeiling = 35

// Decision is the outcome of consulting the manager after a failed attempt.
type Decision struct {
	Retry    bool
	Strategy Strategy
	Delay    time.Duration
	Options  encoder.Options
}

// Manager decides whether and how a failed job gets another attempt. It
// holds the configured ceilings and the codec names needed when escalation
// switches encoder families.
type Manager struct {
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
	qualityStep   int
	softwareCodec string
	hardwareCodec string
}

// NewManager builds a retry manager from configuration.
func NewManager(retryCfg config.Retry, procCfg config.Processing) *Manager {
	return &Manager{
		maxRetries:    retryCfg.MaxRetries,
		baseDelay:     time.Duration(retryCfg.BaseDelay) * time.Second,
		maxDelay:      time.Duration(retryCfg.MaxDelay) * time.Second,
		qualityStep:   retryCfg.QualityStep,
		softwareCodec: procCfg.VideoCodec,
		hardwareCodec: procCfg.HardwareCodec,
	}
}

// MaxRetries returns the configured retry ceiling.
func (m *Manager) MaxRetries() int { return m.maxRetries }

// Backoff returns the delay before the given zero-based retry attempt.
func (m *Manager) Backoff(attempt int) time.Duration {
	delay := m.baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= m.maxDelay {
			return m.maxDelay
		}
	}
	if delay > m.maxDelay {
		return m.maxDelay
	}
	return delay
}

// NextAction decides the next retry for a job whose latest attempt failed
// with the given category. The strategy ladder only moves forward: each
// decision starts at the category's entry stage or one past the previous
// attempt's stage, whichever is later, and the last permitted attempt always
// runs with final-attempt settings.
func (m *Manager) NextAction(job *session.Job, category recovery.Category, cause error, base encoder.Options) Decision {
	attempt := len(job.Attempts)
	if attempt >= m.maxRetries {
		return Decision{}
	}

	stage := stageIndex(entryStrategy(category, cause))
	if n := len(job.Attempts); n > 0 {
		if prev := stageIndex(Strategy(job.Attempts[n-1].Strategy)); prev+1 > stage {
			stage = prev + 1
		}
	}
	if stage >= len(escalation) {
		return Decision{}
	}
	if attempt == m.maxRetries-1 {
		stage = len(escalation) - 1
	}

	strategy := escalation[stage]
	return Decision{
		Retry:    true,
		Strategy: strategy,
		Delay:    m.Backoff(attempt),
		Options:  m.optionsFor(strategy, base),
	}
}

// entryStrategy picks the first ladder stage appropriate for the failure.
// Plain retries are reserved for transient failures; encoder failures go
// straight to a family switch and validation failures to coarser quality.
func entryStrategy(category recovery.Category, cause error) Strategy {
	if cause != nil && (errors.Is(cause, services.ErrTransient) || errors.Is(cause, services.ErrTimeout)) {
		return StrategySameSettings
	}
	switch category {
	case recovery.CategoryEncoding:
		return StrategySwitchEncoder
	case recovery.CategoryValidation:
		return StrategyAdjustQuality
	default:
		return StrategySameSettings
	}
}

func (m *Manager) optionsFor(strategy Strategy, base encoder.Options) encoder.Options {
	opts := base
	switch strategy {
	case StrategySwitchEncoder:
		opts.Family = base.Family.Other()
		opts.Codec = m.codecFor(opts.Family)
	case StrategyAdjustQuality:
		opts.Quality = coarsen(base.Quality, m.qualityStep, 1)
	case StrategyFinalAttempt:
		opts.Family = encoder.FamilySoftware
		opts.Codec = m.codecFor(encoder.FamilySoftware)
		opts.Quality = coarsen(base.Quality, m.qualityStep, 2)
		opts.Preset = "slow"
	}
	return opts
}

func (m *Manager) codecFor(family encoder.Family) string {
	if family == encoder.FamilyHardware {
		return m.hardwareCodec
	}
	return m.softwareCodec
}

func coarsen(quality, step, times int) int {
	adjusted := quality + step*times
	if adjusted > finalQualityCeiling {
		return finalQualityCeiling
	}
	return adjusted
}
