// Copyright 2025 James Ross
package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("RUNNER_PARALLEL_JOBS")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Runner.ParallelJobs != 8 {
		t.Fatalf("expected default parallel_jobs 8, got %d", cfg.Runner.ParallelJobs)
	}
	if cfg.Runner.ThreadsPerJob != 4 {
		t.Fatalf("expected default threads_per_job 4, got %d", cfg.Runner.ThreadsPerJob)
	}
	if cfg.Redis.Addr == "" {
		t.Fatalf("expected default redis addr")
	}
	if cfg.Postgres.DSN == "" {
		t.Fatalf("expected default postgres dsn")
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Runner.ParallelJobs = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for parallel_jobs < 1")
	}

	cfg = defaultConfig()
	cfg.Runner.ThreadsPerJob = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for threads_per_job < 1")
	}

	cfg = defaultConfig()
	cfg.Runner.BlobFragmentSize = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for blob_fragment_size < 1")
	}

	cfg = defaultConfig()
	cfg.Postgres.DSN = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for empty postgres dsn")
	}

	cfg = defaultConfig()
	cfg.Observability.MetricsPort = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for invalid metrics port")
	}
}
