package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobInput is the caller-supplied part of a new job.
type JobInput struct {
	Category     string
	Address      string
	Description  string
	CustomerName string
	Phone        string
	Price        float64
	Urgency      string
}

// Validate checks the required fields and the urgency value.
func (in JobInput) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"address", in.Address},
		{"description", in.Description},
		{"customerName", in.CustomerName},
		{"phone", in.Phone},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	if in.Price < 0 {
		return &ValidationError{Fields: []string{"price"}, Reason: "invalid price: must not be negative"}
	}
	if _, err := ParseUrgency(in.Urgency); err != nil {
		return err
	}
	return nil
}

// NewJob builds an open job. Category defaults to General and urgency to medium.
func NewJob(id string, in JobInput, lat, lng float64, now time.Time) (Job, error) {
	if err := in.Validate(); err != nil {
		return Job{}, err
	}
	urgency, _ := ParseUrgency(in.Urgency)
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "General"
	}
	return Job{
		ID:           id,
		Category:     category,
		Address:      strings.TrimSpace(in.Address),
		Lat:          lat,
		Lng:          lng,
		Price:        in.Price,
		Urgency:      urgency,
		Description:  in.Description,
		CustomerName: in.CustomerName,
		Phone:        in.Phone,
		CreatedAt:    now,
		Status:       JobOpen,
	}, nil
}

// ParseUrgency maps an empty value to medium and rejects unknown levels.
func ParseUrgency(s string) (Urgency, error) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return UrgencyMedium, nil
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return u, nil
	default:
		return "", &ValidationError{Fields: []string{"urgency"}, Reason: fmt.Sprintf("invalid urgency %q", s)}
	}
}

// CanTransition reports whether the job may move to the given status.
// Assigned jobs never change.
func (j Job) CanTransition(to JobStatus) bool {
	switch j.Status {
	case JobOpen:
		return to == JobHeld || to == JobAssigned
	case JobHeld:
		return to == JobOpen || to == JobHeld || to == JobAssigned
	default:
		return false
	}
}
