package config

const (
	defaultStateDir      = "~/.local/share/shrinkray/state"
	defaultStagingDir    = "~/.local/share/shrinkray/staging"
	defaultOutputDir     = "~/converted"
	defaultLogDir        = "~/.local/share/shrinkray/logs"
	defaultMaxConcurrent = 2
	defaultEncoderFamily = "software"
	defaultVideoCodec    = "libx265"
	defaultHardwareCodec = "hevc_vaapi"
	defaultQuality       = 23
	defaultPreset        = "medium"
	defaultEncodeTimeout = 7200
	defaultMaxRetries    = 3
	defaultBaseDelay     = 5
	defaultMaxDelay      = 60
	defaultQualityStep   = 4
	defaultMinFreeGiB    = 10
	defaultSampleInterval = 5
	defaultPauseTimeout   = 600
	defaultPauseBehavior  = "skip"
	defaultCPUHighPercent = 90
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// MaxConcurrentCeiling bounds the worker pool size regardless of configuration.
const MaxConcurrentCeiling = 8

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Processing: Processing{
			MaxConcurrent: defaultMaxConcurrent,
			EncoderFamily: defaultEncoderFamily,
			VideoCodec:    defaultVideoCodec,
			HardwareCodec: defaultHardwareCodec,
			Quality:       defaultQuality,
			Preset:        defaultPreset,
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			ExifToolBinary: "exiftool",
			EncodeTimeout: defaultEncodeTimeout,
		},
		Retry: Retry{
			MaxRetries:  defaultMaxRetries,
			BaseDelay:   defaultBaseDelay,
			MaxDelay:    defaultMaxDelay,
			QualityStep: defaultQualityStep,
		},
		Resources: Resources{
			MinFreeGiB:           defaultMinFreeGiB,
			SampleInterval:       defaultSampleInterval,
			PauseTimeout:         defaultPauseTimeout,
			PauseTimeoutBehavior: defaultPauseBehavior,
			CPUHighPercent:       defaultCPUHighPercent,
		},
		Validation: Validation{
			FrameRateTolerance:  0.1,
			DurationTolerance:   1.0,
			DateTolerance:       1.0,
			GPSToleranceDegrees: 1e-6,
			RatioNormalMin:      0.20,
			RatioNormalMax:      0.80,
			RatioErrorMin:       0.15,
			RatioErrorMax:       0.90,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			BatchEvents:    true,
			PauseEvents:    true,
			ErrorEvents:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
