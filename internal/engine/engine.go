package engine

import (
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelmaranon/FixNow/internal/clock"
	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/events"
	"github.com/rafaelmaranon/FixNow/internal/offers"
	"github.com/rafaelmaranon/FixNow/internal/repo"
	"github.com/rafaelmaranon/FixNow/internal/stage"
	"github.com/rafaelmaranon/FixNow/internal/triage"
)

// Engine coordinates the marketplace: it owns the stores, records the
// event feed and schedules the scripted conversation around each job.
// Rand returns a value in [0, n) and is replaced in tests.
type Engine struct {
	Stores    repo.Stores
	Events    *events.Log
	Scheduler *stage.Scheduler
	Offers    *offers.Generator
	Triage    *triage.Analyzer
	Config    *config.Config
	Clock     clock.Clock
	Logger    *slog.Logger
	Rand      func(n int) int
}

// Options carries the optional collaborators of New.
type Options struct {
	Clock     clock.Clock
	Logger    *slog.Logger
	Proposer  offers.Proposer
	Diagnoser triage.Diagnoser
}

func New(cfg *config.Config, opts Options) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stores := repo.NewStores()
	log := events.NewLog(cfg.Events.Capacity)
	log.Now = c.Now
	return Engine{
		Stores:    stores,
		Events:    log,
		Scheduler: stage.NewScheduler(c, logger),
		Offers: &offers.Generator{
			Store:    stores.Offers,
			Proposer: opts.Proposer,
			Logger:   logger,
			Now:      c.Now,
		},
		Triage: &triage.Analyzer{Diagnoser: opts.Diagnoser, Logger: logger},
		Config: cfg,
		Clock:  c,
		Logger: logger,
		Rand:   rand.IntN,
	}
}

func (e Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock.Now()
	}
	return time.Now()
}

func (e Engine) random(n int) int {
	if e.Rand != nil {
		return e.Rand(n)
	}
	return rand.IntN(n)
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// money renders a price without trailing zeros: 300, 187.5.
func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', -1, 64)
}

// neighborhood picks the second comma-separated part of an address.
func neighborhood(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) > 1 {
		if n := strings.TrimSpace(parts[1]); n != "" {
			return n
		}
	}
	return strings.TrimSpace(address)
}
