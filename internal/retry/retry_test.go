package retry

import (
	"errors"
	"testing"
	"time"

	"shrinkray/internal/config"
	"shrinkray/internal/encoder"
	"shrinkray/internal/recovery"
	"shrinkray/internal/services"
	"shrinkray/internal/session"
)

func newTestManager(maxRetries int) *Manager {
	return NewManager(
		config.Retry{MaxRetries: maxRetries, BaseDelay: 5, MaxDelay: 60, QualityStep: 4},
		config.Processing{VideoCodec: "libx265", HardwareCodec: "hevc_vaapi"},
	)
}

func newTestJob() *session.Job {
	return session.NewJob("sha256:test", "clip", "/in/clip.mov", "", 1000)
}

func baseOptions() encoder.Options {
	return encoder.Options{
		Family:  encoder.FamilySoftware,
		Codec:   "libx265",
		Quality: 23,
		Preset:  "medium",
	}
}

func TestBackoffExponentialWithCap(t *testing.T) {
	m := newTestManager(6)
	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for attempt, expected := range want {
		if got := m.Backoff(attempt); got != expected {
			t.Fatalf("Backoff(%d): got %v, want %v", attempt, got, expected)
		}
	}
}

func TestEncoderFailureStartsAtSwitchEncoder(t *testing.T) {
	m := newTestManager(3)
	job := newTestJob()
	err := services.Wrap(services.ErrExternalTool, "encoder", "convert", "exit status 1", nil)

	decision := m.NextAction(job, recovery.CategoryEncoding, err, baseOptions())
	if !decision.Retry {
		t.Fatal("expected retry")
	}
	if decision.Strategy != StrategySwitchEncoder {
		t.Fatalf("strategy: got %s, want %s", decision.Strategy, StrategySwitchEncoder)
	}
	if decision.Options.Family != encoder.FamilyHardware {
		t.Fatalf("family: got %s, want hardware", decision.Options.Family)
	}
	if decision.Options.Codec != "hevc_vaapi" {
		t.Fatalf("codec: got %s, want hevc_vaapi", decision.Options.Codec)
	}
}

func TestTransientFailureStartsAtSameSettings(t *testing.T) {
	m := newTestManager(3)
	job := newTestJob()
	err := services.Wrap(services.ErrTimeout, "encoder", "convert", "", nil)

	decision := m.NextAction(job, recovery.CategoryEncoding, err, baseOptions())
	if decision.Strategy != StrategySameSettings {
		t.Fatalf("strategy: got %s, want %s", decision.Strategy, StrategySameSettings)
	}
	if decision.Options != baseOptions() {
		t.Fatalf("options changed on plain retry: %+v", decision.Options)
	}
}

func TestValidationFailureStartsAtAdjustQuality(t *testing.T) {
	m := newTestManager(4)
	job := newTestJob()

	decision := m.NextAction(job, recovery.CategoryValidation, errors.New("duration drift"), baseOptions())
	if decision.Strategy != StrategyAdjustQuality {
		t.Fatalf("strategy: got %s, want %s", decision.Strategy, StrategyAdjustQuality)
	}
	if decision.Options.Quality != 27 {
		t.Fatalf("quality: got %d, want 27", decision.Options.Quality)
	}
}

func TestEscalationNeverRepeatsOrReorders(t *testing.T) {
	m := newTestManager(4)
	job := newTestJob()
	err := errors.New("encoder crash")

	var seen []Strategy
	for {
		decision := m.NextAction(job, recovery.CategoryEncoding, err, baseOptions())
		if !decision.Retry {
			break
		}
		seen = append(seen, decision.Strategy)
		job.RecordAttempt(string(decision.Strategy), "failed")
	}

	if len(seen) == 0 {
		t.Fatal("expected at least one retry")
	}
	last := -1
	for _, strategy := range seen {
		idx := stageIndex(strategy)
		if idx <= last {
			t.Fatalf("strategy sequence %v repeats or reorders stages", seen)
		}
		last = idx
	}
	if seen[len(seen)-1] != StrategyFinalAttempt {
		t.Fatalf("sequence %v must end with %s", seen, StrategyFinalAttempt)
	}
}

func TestFinalAllowedAttemptIsConservative(t *testing.T) {
	m := newTestManager(2)
	job := newTestJob()
	job.RecordAttempt(string(StrategySwitchEncoder), "failed")

	decision := m.NextAction(job, recovery.CategoryEncoding, errors.New("crash"), encoder.Options{
		Family:  encoder.FamilyHardware,
		Codec:   "hevc_vaapi",
		Quality: 23,
		Preset:  "medium",
	})
	if decision.Strategy != StrategyFinalAttempt {
		t.Fatalf("strategy: got %s, want %s", decision.Strategy, StrategyFinalAttempt)
	}
	if decision.Options.Family != encoder.FamilySoftware {
		t.Fatalf("final attempt family: got %s, want software", decision.Options.Family)
	}
	if decision.Options.Codec != "libx265" {
		t.Fatalf("final attempt codec: got %s", decision.Options.Codec)
	}
	if decision.Options.Preset != "slow" {
		t.Fatalf("final attempt preset: got %s", decision.Options.Preset)
	}
	if decision.Options.Quality != 31 {
		t.Fatalf("final attempt quality: got %d, want 31", decision.Options.Quality)
	}
}

func TestQualityCoarseningIsCapped(t *testing.T) {
	m := newTestManager(4)
	opts := m.optionsFor(StrategyFinalAttempt, encoder.Options{Quality: 33})
	if opts.Quality != finalQualityCeiling {
		t.Fatalf("quality: got %d, want ceiling %d", opts.Quality, finalQualityCeiling)
	}
}

func TestRetryCeilingExhausted(t *testing.T) {
	m := newTestManager(2)
	job := newTestJob()
	job.RecordAttempt(string(StrategySwitchEncoder), "failed")
	job.RecordAttempt(string(StrategyFinalAttempt), "failed")

	decision := m.NextAction(job, recovery.CategoryEncoding, errors.New("crash"), baseOptions())
	if decision.Retry {
		t.Fatalf("expected no retry past ceiling, got %+v", decision)
	}
}
