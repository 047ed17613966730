package domain

import (
	"strings"
	"time"
)

// DefaultDraftLocation is used until the homeowner shares a location.
var DefaultDraftLocation = [2]float64{37.7749, -122.4194}

func NewDraft(id, userInput, category string, now time.Time) (Draft, error) {
	if strings.TrimSpace(userInput) == "" {
		return Draft{}, &ValidationError{Fields: []string{"userInput"}}
	}
	if strings.TrimSpace(category) == "" {
		category = "unknown"
	}
	return Draft{
		ID:          id,
		Role:        "homeowner",
		Status:      "draft",
		Category:    category,
		Urgency:     UrgencyMedium,
		Location:    DefaultDraftLocation,
		Description: userInput,
		Attachments: []string{},
		CreatedAt:   now,
	}, nil
}

// DraftPatch carries the fields a shallow merge may replace. Nil means keep.
type DraftPatch struct {
	Category    *string
	Subcategory *string
	Urgency     *string
	BudgetHint  *float64
	Location    *[2]float64
	Description *string
	Attachments []string
	Analysis    *Analysis
}

// Apply merges p into d. The draft is left untouched on error.
func (p DraftPatch) Apply(d *Draft) error {
	next := *d
	if p.Urgency != nil {
		u, err := ParseUrgency(*p.Urgency)
		if err != nil {
			return err
		}
		next.Urgency = u
	}
	if p.BudgetHint != nil {
		if *p.BudgetHint < 0 {
			return &ValidationError{Fields: []string{"budget_hint"}, Reason: "invalid budget_hint: must not be negative"}
		}
		hint := *p.BudgetHint
		next.BudgetHint = &hint
	}
	if p.Category != nil {
		next.Category = *p.Category
	}
	if p.Subcategory != nil {
		next.Subcategory = *p.Subcategory
	}
	if p.Location != nil {
		next.Location = *p.Location
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Attachments != nil {
		next.Attachments = append([]string(nil), p.Attachments...)
	}
	if p.Analysis != nil {
		a := *p.Analysis
		next.Analysis = &a
	}
	*d = next
	return nil
}
