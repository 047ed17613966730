package engine

import (
	"context"
	"fmt"

	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/events"
)

const (
	maxDispatch     = 5
	defaultStrategy = "topNearby"
)

// Reply kinds a contacted contractor can send back.
const (
	ReplyAccept  = "accept"
	ReplyCounter = "counter"
	ReplyDecline = "decline"
)

type DispatchRequest struct {
	Strategy string
	Limit    int
	Filters  map[string]any
}

type Reply struct {
	ContractorID   string  `json:"contractorId"`
	ContractorName string  `json:"contractorName"`
	Type           string  `json:"type" enum:"accept,counter,decline"`
	ETAMinutes     int     `json:"etaMinutes,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Message        string  `json:"message"`
}

type DispatchSummary struct {
	Accepted  int `json:"accepted"`
	Countered int `json:"countered"`
	Declined  int `json:"declined"`
}

type DispatchResult struct {
	Contacted int             `json:"contacted"`
	Replies   []Reply         `json:"replies"`
	Summary   DispatchSummary `json:"summary"`
}

var cannedReplies = []Reply{
	{ContractorName: "Mike Johnson", Type: ReplyAccept, ETAMinutes: 30, Price: 250, Message: "Can be there in 30 min."},
	{ContractorName: "Sarah Chen", Type: ReplyCounter, ETAMinutes: 45, Price: 300, Message: "Parts likely needed, higher estimate."},
	{ContractorName: "David Rodriguez", Type: ReplyAccept, ETAMinutes: 25, Price: 220, Message: "Available now, close by!"},
	{ContractorName: "Lisa Thompson", Type: ReplyDecline, Message: "Too far right now, sorry."},
	{ContractorName: "Alex Kim", Type: ReplyCounter, ETAMinutes: 60, Price: 280, Message: "Can do it this afternoon."},
}

// Dispatch simulates reaching out to nearby contractors. The answer
// arrives after the configured reply pause, or ctx's error if the
// caller gives up first.
func (e Engine) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = defaultStrategy
	}
	limit := req.Limit
	if limit <= 0 || limit > maxDispatch {
		limit = maxDispatch
	}
	e.Logger.Info("dispatching", "strategy", strategy, "limit", limit, "filters", fmt.Sprint(req.Filters))

	if d := config.MS(e.Config.Pacing.DispatchReplyMS); d > 0 {
		select {
		case <-ctx.Done():
			return DispatchResult{}, ctx.Err()
		case <-e.Clock.After(d):
		}
	}

	res := DispatchResult{Contacted: limit, Replies: make([]Reply, 0, limit)}
	for i, r := range cannedReplies[:limit] {
		r.ContractorID = fmt.Sprintf("contractor-%d", i+1)
		res.Replies = append(res.Replies, r)
		switch r.Type {
		case ReplyAccept:
			res.Summary.Accepted++
		case ReplyCounter:
			res.Summary.Countered++
		case ReplyDecline:
			res.Summary.Declined++
		}
	}
	e.Events.Record(events.Entry{
		Agent:    domain.AgentSystem,
		Action:   "dispatched job",
		Audience: domain.AudienceBoth,
		Details: map[string]any{
			"strategy":  strategy,
			"contacted": res.Contacted,
			"accepted":  res.Summary.Accepted,
			"countered": res.Summary.Countered,
			"declined":  res.Summary.Declined,
		},
	})
	return res, nil
}
