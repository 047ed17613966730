// Package app assembles the running components from a loaded config.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/rafaelmaranon/FixNow/internal/clock"
	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/directory"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/engine"
	"github.com/rafaelmaranon/FixNow/internal/reasoning"
)

// NewLogger builds the process logger. Format is "text" or "json".
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: must be text or json", format)
	}
}

// App holds everything serve needs.
type App struct {
	Config    *config.Config
	Engine    engine.Engine
	Directory *directory.Client
	Logger    *slog.Logger

	snapshot *directory.Snapshot
}

// Build wires the engine, the reasoning backend and the directory client.
// A nil clock means the real one.
func Build(ctx context.Context, cfg *config.Config, c clock.Clock, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := engine.Options{Clock: c, Logger: logger}
	if svc := NewReasoning(cfg.Reasoning, logger); svc != nil {
		opts.Proposer = svc
		opts.Diagnoser = svc
	}
	a := &App{
		Config: cfg,
		Engine: engine.New(cfg, opts),
		Logger: logger,
	}
	if cfg.Directory.SnapshotPath != "" {
		snap, err := directory.OpenSnapshot(ctx, cfg.Directory.SnapshotPath)
		if err != nil {
			return nil, err
		}
		a.snapshot = snap
	}
	a.Directory = directory.New(cfg.Directory, a.snapshot, logger)
	logger.Info("app built", "reasoning", cfg.Reasoning.Mode, "directory", cfg.Directory.BaseURL)
	return a, nil
}

// NewReasoning returns nil in mock mode.
func NewReasoning(cfg config.Reasoning, logger *slog.Logger) *reasoning.Service {
	var backend reasoning.Backend
	switch cfg.Mode {
	case config.ModeExternal:
		backend = &reasoning.HTTPBackend{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Client:  &http.Client{},
		}
	case config.ModeOpenAI:
		backend = reasoning.NewOpenAIBackend(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil
	}
	return reasoning.NewService(backend, cfg.Timeout(), logger)
}

// Close stops pending sequences and releases the snapshot.
func (a *App) Close() error {
	a.Engine.Scheduler.Close()
	if a.snapshot != nil {
		return a.snapshot.Close()
	}
	return nil
}

// LoadSeed reads a JSON array of jobs.
func LoadSeed(path string) ([]domain.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var jobs []domain.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return jobs, nil
}
