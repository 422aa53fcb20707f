package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.PipelineFile != "pipeline.yaml" {
		t.Errorf("PipelineFile = %q, want pipeline.yaml", cfg.PipelineFile)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.JobTimeout != 30*time.Minute {
		t.Errorf("JobTimeout = %s, want 30m", cfg.JobTimeout)
	}
	if cfg.BuilderBin != "packer" {
		t.Errorf("BuilderBin = %q, want packer", cfg.BuilderBin)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORKERS", "8")
	t.Setenv("JOB_TIMEOUT", "5m")
	t.Setenv("PROJECT_ID", "test-project")
	t.Setenv("IMAGE_VERSION", "24.05.4")

	cfg := Load()

	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.JobTimeout != 5*time.Minute {
		t.Errorf("JobTimeout = %s, want 5m", cfg.JobTimeout)
	}
	if cfg.ProjectID != "test-project" {
		t.Errorf("ProjectID = %q, want test-project", cfg.ProjectID)
	}

	vars := cfg.Variables()
	if vars["IMAGE_VERSION"] != "24.05.4" {
		t.Errorf("Variables()[IMAGE_VERSION] = %q, want 24.05.4", vars["IMAGE_VERSION"])
	}
	if vars["PROJECT_ID"] != "test-project" {
		t.Errorf("Variables()[PROJECT_ID] = %q, want test-project", vars["PROJECT_ID"])
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("WORKERS", "not-a-number")
	t.Setenv("JOB_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want default 4", cfg.Workers)
	}
	if cfg.JobTimeout != 30*time.Minute {
		t.Errorf("JobTimeout = %s, want default 30m", cfg.JobTimeout)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{PipelineFile: "pipeline.yaml", Workers: 2}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}

	cfg = &Config{Workers: 2}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for empty pipeline file")
	}

	cfg = &Config{PipelineFile: "pipeline.yaml", Workers: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for zero workers")
	}

	cfg = &Config{PipelineFile: "pipeline.yaml", Workers: 2, CredentialsFile: "/no/such/file"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for missing credentials file")
	}
}
