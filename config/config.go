package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ModelConfig struct {
	SourceDir  string `yaml:"source_dir"`
	DataDir    string `yaml:"data_dir"`
	Command    string `yaml:"command"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type RecognitionConfig struct {
	PartialEveryMS int  `yaml:"partial_every_ms"`
	StopOnFinal    bool `yaml:"stop_on_final"`
}

type CaptureConfig struct {
	Device string `yaml:"device"`
}

type OutputConfig struct {
	AutoCopy   bool   `yaml:"auto_copy"`
	ArchiveDir string `yaml:"archive_dir"`
}

type LogConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	Model       ModelConfig       `yaml:"model"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Capture     CaptureConfig     `yaml:"capture"`
	Output      OutputConfig      `yaml:"output"`
	Log         LogConfig         `yaml:"log"`
}

func Default() Config {
	return Config{
		Model: ModelConfig{
			Command:    "vosk-transcriber --json",
			Language:   "en-us",
			SampleRate: 16000,
			Channels:   1,
		},
		Recognition: RecognitionConfig{
			PartialEveryMS: 2000,
			StopOnFinal:    false,
		},
		Output: OutputConfig{
			AutoCopy: true,
		},
	}
}

// Load reads the file at path (when non-empty), applies SCRIBE_*
// environment overrides on top, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Model.SourceDir, "SCRIBE_MODEL_SOURCE_DIR")
	overrideString(&cfg.Model.DataDir, "SCRIBE_MODEL_DATA_DIR")
	overrideString(&cfg.Model.Command, "SCRIBE_MODEL_COMMAND")
	overrideString(&cfg.Model.Language, "SCRIBE_MODEL_LANGUAGE")
	overrideInt(&cfg.Model.SampleRate, "SCRIBE_MODEL_SAMPLE_RATE")
	overrideInt(&cfg.Model.Channels, "SCRIBE_MODEL_CHANNELS")
	overrideInt(&cfg.Recognition.PartialEveryMS, "SCRIBE_PARTIAL_EVERY_MS")
	overrideBool(&cfg.Recognition.StopOnFinal, "SCRIBE_STOP_ON_FINAL")
	overrideString(&cfg.Capture.Device, "SCRIBE_CAPTURE_DEVICE")
	overrideBool(&cfg.Output.AutoCopy, "SCRIBE_AUTO_COPY")
	overrideString(&cfg.Output.ArchiveDir, "SCRIBE_ARCHIVE_DIR")
	overrideString(&cfg.Log.Path, "SCRIBE_LOG_PATH")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.Model.Command == "" {
		return errors.New("model.command must not be empty")
	}
	if cfg.Model.SampleRate <= 0 {
		return errors.New("model.sample_rate must be positive")
	}
	if cfg.Model.Channels <= 0 {
		return errors.New("model.channels must be positive")
	}
	if cfg.Recognition.PartialEveryMS < 0 {
		return errors.New("recognition.partial_every_ms must be >= 0")
	}
	return nil
}
