package engine

import (
	"context"

	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/events"
)

// SetAvailability replaces the contractor's availability window.
func (e Engine) SetAvailability(ctx context.Context, contractorID string, in domain.AvailabilityInput) (domain.Availability, error) {
	a, err := domain.NewAvailability(contractorID, in, e.now())
	if err != nil {
		return domain.Availability{}, err
	}
	replaced := e.Stores.Availability.Put(a)
	e.Events.Record(events.Entry{
		Agent:        domain.AgentContractor,
		Action:       "set availability",
		Audience:     domain.AudienceBoth,
		ContractorID: contractorID,
		Details: map[string]any{
			"skills":       a.Skills,
			"radiusMeters": a.RadiusMeters,
			"untilIso":     a.Until,
			"replaced":     replaced,
		},
	})
	return a, nil
}

// ClearAvailability removes the contractor's window. Clearing an absent
// window still records the event.
func (e Engine) ClearAvailability(ctx context.Context, contractorID string) error {
	if contractorID == "" {
		return &domain.ValidationError{Fields: []string{"contractorId"}}
	}
	existed := e.Stores.Availability.Delete(contractorID)
	e.Events.Record(events.Entry{
		Agent:        domain.AgentContractor,
		Action:       "cleared availability",
		Audience:     domain.AudienceBoth,
		ContractorID: contractorID,
		Details:      map[string]any{"existed": existed},
	})
	return nil
}

// GetAvailability returns nil when the contractor has no live window.
func (e Engine) GetAvailability(ctx context.Context, contractorID string) *domain.Availability {
	a, ok := e.Stores.Availability.Get(contractorID)
	if !ok || !a.Live(e.now()) {
		return nil
	}
	return &a
}

// ListAvailability returns live windows, optionally only those offering skill.
func (e Engine) ListAvailability(ctx context.Context, skill string) []domain.Availability {
	now := e.now()
	out := []domain.Availability{}
	for _, a := range e.Stores.Availability.List() {
		if !a.Live(now) {
			continue
		}
		if skill != "" && !a.HasSkill(skill) {
			continue
		}
		out = append(out, a)
	}
	return out
}
