package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rafaelmaranon/FixNow/internal/config"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "job", "1")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, `"job":"1"`) {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := NewLogger(&buf, "loud", "text"); err == nil {
		t.Fatalf("expected bad level error")
	}
	if _, err := NewLogger(&buf, "info", "xml"); err == nil {
		t.Fatalf("expected bad format error")
	}
}

func TestNewReasoningByMode(t *testing.T) {
	cfg := config.Default().Reasoning
	if NewReasoning(cfg, nil) != nil {
		t.Fatalf("mock mode should not build a service")
	}
	cfg.Mode = config.ModeExternal
	cfg.BaseURL = "http://127.0.0.1:1"
	if NewReasoning(cfg, nil) == nil {
		t.Fatalf("external mode should build a service")
	}
}

func TestBuildWithSnapshotAndSeed(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Directory.SnapshotPath = filepath.Join(dir, "directory.db")
	a, err := Build(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()
	if a.Directory.Snapshot == nil {
		t.Fatalf("snapshot not wired")
	}

	seed := filepath.Join(dir, "jobs.json")
	data := `[{"id":"1","category":"Electrical","address":"12 Noe St, Castro","lat":0,"lng":0,"price":180,
		"description":"Outlet not working","customerName":"Kim","phone":"555"}]`
	if err := os.WriteFile(seed, []byte(data), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	jobs, err := LoadSeed(seed)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	ctx := context.Background()
	if err := a.Engine.ImportJobs(ctx, jobs); err != nil {
		t.Fatalf("import: %v", err)
	}
	job, err := a.Engine.GetJob(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Lat == 0 || job.Status != "open" {
		t.Fatalf("seed job not healed: %+v", job)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Reasoning.Mode = "psychic"
	if _, err := Build(context.Background(), cfg, nil, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}
