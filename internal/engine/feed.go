package engine

import (
	"context"

	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/events"
)

// DefaultFeedLimit applies when a feed request gives no limit.
const DefaultFeedLimit = 20

// Feed lists events newest first, along with how many matched before
// the limit applied. Audience "both" or empty means all.
func (e Engine) Feed(ctx context.Context, limit int, audience domain.Audience) ([]domain.Event, int) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return e.Events.List(events.Query{Limit: limit, Audience: audience})
}

// ContractorFeed lists events addressed to contractors in general or to
// this contractor in particular.
func (e Engine) ContractorFeed(ctx context.Context, contractorID string, limit int) ([]domain.Event, int) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return e.Events.List(events.Query{Limit: limit, ContractorID: contractorID})
}
