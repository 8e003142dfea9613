package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Recognition.PartialEveryMS != 2000 {
		t.Fatalf("expected default partial interval 2000, got %d", cfg.Recognition.PartialEveryMS)
	}
	if cfg.Recognition.StopOnFinal {
		t.Fatal("expected continuous capture by default")
	}
	if cfg.Model.SampleRate != 16000 || cfg.Model.Channels != 1 {
		t.Fatalf("unexpected default audio format: %d/%d", cfg.Model.SampleRate, cfg.Model.Channels)
	}
	if !cfg.Output.AutoCopy {
		t.Fatal("expected auto_copy on by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	body := `model:
  source_dir: /opt/models/vosk-small
  language: de
recognition:
  partial_every_ms: 500
  stop_on_final: true
output:
  auto_copy: false
  archive_dir: /tmp/recordings
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.SourceDir != "/opt/models/vosk-small" {
		t.Fatalf("expected source_dir from file, got %q", cfg.Model.SourceDir)
	}
	if cfg.Model.Language != "de" {
		t.Fatalf("expected language override, got %q", cfg.Model.Language)
	}
	// Unset keys keep their defaults.
	if cfg.Model.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Model.SampleRate)
	}
	if cfg.Recognition.PartialEveryMS != 500 || !cfg.Recognition.StopOnFinal {
		t.Fatalf("unexpected recognition config: %+v", cfg.Recognition)
	}
	if cfg.Output.AutoCopy || cfg.Output.ArchiveDir != "/tmp/recordings" {
		t.Fatalf("unexpected output config: %+v", cfg.Output)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCRIBE_MODEL_SOURCE_DIR", "/models/src")
	t.Setenv("SCRIBE_MODEL_LANGUAGE", "fr")
	t.Setenv("SCRIBE_PARTIAL_EVERY_MS", "750")
	t.Setenv("SCRIBE_STOP_ON_FINAL", "true")
	t.Setenv("SCRIBE_AUTO_COPY", "false")
	t.Setenv("SCRIBE_CAPTURE_DEVICE", "usb-mic")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.SourceDir != "/models/src" {
		t.Fatalf("expected source dir override, got %q", cfg.Model.SourceDir)
	}
	if cfg.Model.Language != "fr" {
		t.Fatalf("expected language override, got %q", cfg.Model.Language)
	}
	if cfg.Recognition.PartialEveryMS != 750 {
		t.Fatalf("expected partial interval override, got %d", cfg.Recognition.PartialEveryMS)
	}
	if !cfg.Recognition.StopOnFinal {
		t.Fatal("expected stop_on_final override")
	}
	if cfg.Output.AutoCopy {
		t.Fatal("expected auto_copy override false")
	}
	if cfg.Capture.Device != "usb-mic" {
		t.Fatalf("expected device override, got %q", cfg.Capture.Device)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("SCRIBE_MODEL_SAMPLE_RATE", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for zero sample rate")
	}
}
