package domain

import (
	"strings"
	"time"
)

const (
	DefaultRadiusMeters       = 5000
	DefaultAvailabilityWindow = 4 * time.Hour
)

type AvailabilityInput struct {
	Location        Location
	Skills          []string
	BudgetMax       float64
	RadiusMeters    int
	Until           *time.Time
	DurationMinutes int
	Notes           string
}

// NewAvailability applies the radius and window defaults.
func NewAvailability(contractorID string, in AvailabilityInput, now time.Time) (Availability, error) {
	if strings.TrimSpace(contractorID) == "" {
		return Availability{}, &ValidationError{Fields: []string{"contractorId"}}
	}
	if in.RadiusMeters < 0 || in.BudgetMax < 0 || in.DurationMinutes < 0 {
		return Availability{}, &ValidationError{Reason: "invalid availability: radius, budget and duration must not be negative"}
	}
	radius := in.RadiusMeters
	if radius == 0 {
		radius = DefaultRadiusMeters
	}
	until := now.Add(DefaultAvailabilityWindow)
	switch {
	case in.Until != nil:
		if !in.Until.After(now) {
			return Availability{}, &ValidationError{Fields: []string{"untilIso"}, Reason: "invalid untilIso: must be in the future"}
		}
		until = *in.Until
	case in.DurationMinutes > 0:
		until = now.Add(time.Duration(in.DurationMinutes) * time.Minute)
	}
	skills := make([]string, 0, len(in.Skills))
	for _, s := range in.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return Availability{
		ContractorID: contractorID,
		Location:     in.Location,
		Skills:       skills,
		BudgetMax:    in.BudgetMax,
		RadiusMeters: radius,
		Until:        until,
		Notes:        in.Notes,
		CreatedAt:    now,
	}, nil
}

// HasSkill matches case-insensitively.
func (a Availability) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}
