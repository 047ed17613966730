// Package offers produces the contrasting offers a job receives: one
// fast and pricey, one slower and cheaper.
package offers

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/reasoning"
	"github.com/rafaelmaranon/FixNow/internal/repo"
)

const (
	defaultBasePrice = 250
	defaultCategory  = "Plumbing"
)

// Proposer is implemented by reasoning.Service.
type Proposer interface {
	ProposeOffers(ctx context.Context, job domain.Job) ([]reasoning.Proposal, error)
}

// Generator creates offers and appends them to Store. With a nil
// Proposer it always uses the built-in pair.
type Generator struct {
	Store    *repo.OfferStore
	Proposer Proposer
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Generator) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return "offer-" + uuid.NewString()
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Generate returns the job's offers. It never returns an empty slice:
// any failure of the external service falls back to the built-in pair.
func (g *Generator) Generate(ctx context.Context, job domain.Job) []domain.Offer {
	var offers []domain.Offer
	if g.Proposer != nil {
		proposals, err := g.Proposer.ProposeOffers(ctx, job)
		switch {
		case err != nil:
			g.logger().Warn("offer proposal failed, using built-in offers", "job", job.ID, "err", err)
		case len(proposals) == 0:
			g.logger().Warn("offer proposal empty, using built-in offers", "job", job.ID)
		default:
			offers = g.fromProposals(job, proposals)
		}
	}
	if len(offers) == 0 {
		offers = Mock(job, g.now(), g.newID)
	}
	if g.Store != nil {
		g.Store.Add(offers...)
	}
	return offers
}

func (g *Generator) fromProposals(job domain.Job, proposals []reasoning.Proposal) []domain.Offer {
	now := g.now()
	category := categoryOf(job)
	out := make([]domain.Offer, 0, len(proposals))
	for i, p := range proposals {
		kind := p.Type
		if kind != domain.OfferFast && kind != domain.OfferBudget {
			kind = inferType(job, p, i)
		}
		o := domain.Offer{
			ID:             g.newID(),
			JobID:          job.ID,
			ContractorID:   p.ContractorID,
			ContractorName: p.ContractorName,
			Price:          math.Round(p.Price),
			ETA:            p.ETA,
			Message:        p.Message,
			Rating:         p.Rating,
			Type:           kind,
			CreatedAt:      now,
		}
		if o.ContractorID == "" {
			o.ContractorID = "contractor-" + string(kind)
		}
		if o.ContractorName == "" {
			o.ContractorName = fmt.Sprintf("%s %s Pro", titleCase(string(kind)), category)
		}
		if o.ETA == "" {
			o.ETA = map[domain.OfferType]string{domain.OfferFast: "1 hour", domain.OfferBudget: "2-3 hours"}[kind]
		}
		if o.Rating <= 0 || o.Rating > 5 {
			o.Rating = 4.5
		}
		if o.Message == "" && p.Salvaged {
			o.Message = "Available for this job"
		}
		out = append(out, o)
	}
	return out
}

// inferType labels an untyped proposal: above the job's base price is
// the premium option, otherwise the budget one. Without a usable base
// price the first proposal is fast.
func inferType(job domain.Job, p reasoning.Proposal, index int) domain.OfferType {
	if base := basePrice(job); base > 0 && p.Price != base {
		if p.Price > base {
			return domain.OfferFast
		}
		return domain.OfferBudget
	}
	if index == 0 {
		return domain.OfferFast
	}
	return domain.OfferBudget
}

// Mock builds the deterministic pair of offers.
func Mock(job domain.Job, now time.Time, newID func() string) []domain.Offer {
	base := basePrice(job)
	category := categoryOf(job)
	return []domain.Offer{
		{
			ID:             newID(),
			JobID:          job.ID,
			ContractorID:   "contractor-fast",
			ContractorName: fmt.Sprintf("Quick %s Pro", category),
			Price:          math.Round(base * 1.2),
			ETA:            "1 hour",
			Message:        "Can be there in 1 hour, premium service",
			Rating:         4.8,
			Type:           domain.OfferFast,
			CreatedAt:      now,
		},
		{
			ID:             newID(),
			JobID:          job.ID,
			ContractorID:   "contractor-budget",
			ContractorName: fmt.Sprintf("Budget %s Solutions", category),
			Price:          math.Round(base * 0.9),
			ETA:            "2-3 hours",
			Message:        "Best value option, quality work",
			Rating:         4.6,
			Type:           domain.OfferBudget,
			CreatedAt:      now,
		},
	}
}

func basePrice(job domain.Job) float64 {
	if job.Price > 0 {
		return job.Price
	}
	return defaultBasePrice
}

func categoryOf(job domain.Job) string {
	if c := strings.TrimSpace(job.Category); c != "" {
		return c
	}
	return defaultCategory
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
