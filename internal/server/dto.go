package server

import (
	"time"

	"github.com/rafaelmaranon/FixNow/internal/directory"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/engine"
)

// Request payloads. Every field is optional in the schema; required
// fields are checked by the engine so callers get one 400 listing them.

type CreateJobRequest struct {
	_            struct{} `json:"-" additionalProperties:"true"`
	Category     string   `json:"category,omitempty"`
	Address      string   `json:"address,omitempty"`
	Description  string   `json:"description,omitempty"`
	CustomerName string   `json:"customerName,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Urgency      string   `json:"urgency,omitempty"`
	Price        float64  `json:"price,omitempty"`
}

type HoldRequest struct {
	JobID   string `json:"jobId,omitempty"`
	Minutes int    `json:"minutes,omitempty"`
}

type DispatchRequest struct {
	Strategy string         `json:"strategy,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Filters  map[string]any `json:"filters,omitempty"`
}

type CreateDraftRequest struct {
	UserInput string `json:"userInput,omitempty"`
	Category  string `json:"category,omitempty"`
}

// PatchDraftRequest ignores keys it does not know, including the
// immutable id, role, status and createdAt.
type PatchDraftRequest struct {
	_           struct{}         `json:"-" additionalProperties:"true"`
	Category    *string          `json:"category,omitempty"`
	Subcategory *string          `json:"subcategory,omitempty"`
	Urgency     *string          `json:"urgency,omitempty"`
	BudgetHint  *float64         `json:"budget_hint,omitempty"`
	Location    *[2]float64      `json:"location,omitempty"`
	Description *string          `json:"description,omitempty"`
	Attachments []string         `json:"attachments,omitempty"`
	Analysis    *domain.Analysis `json:"analysis,omitempty"`
}

func (r PatchDraftRequest) patch() domain.DraftPatch {
	return domain.DraftPatch{
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Urgency:     r.Urgency,
		BudgetHint:  r.BudgetHint,
		Location:    r.Location,
		Description: r.Description,
		Attachments: r.Attachments,
		Analysis:    r.Analysis,
	}
}

type AnalyzeImageRequest struct {
	DraftID  string `json:"draftId,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Context  string `json:"context,omitempty"`
}

type LocationRequest struct {
	Address      string  `json:"address,omitempty"`
	Lat          float64 `json:"lat,omitempty"`
	Lng          float64 `json:"lng,omitempty"`
	Neighborhood string  `json:"neighborhood,omitempty"`
}

type AvailabilityRequest struct {
	Location        *LocationRequest `json:"location,omitempty"`
	Skills          []string         `json:"skills,omitempty"`
	BudgetMax       float64          `json:"budgetMax,omitempty"`
	RadiusMeters    int              `json:"radiusMeters,omitempty"`
	UntilISO        *time.Time       `json:"untilIso,omitempty"`
	DurationMinutes int              `json:"durationMinutes,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

func (r AvailabilityRequest) input() domain.AvailabilityInput {
	in := domain.AvailabilityInput{
		Skills:          r.Skills,
		BudgetMax:       r.BudgetMax,
		RadiusMeters:    r.RadiusMeters,
		Until:           r.UntilISO,
		DurationMinutes: r.DurationMinutes,
		Notes:           r.Notes,
	}
	if r.Location != nil {
		in.Location = domain.Location(*r.Location)
	}
	return in
}

// Response payloads

type HealthResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	JobsCount int       `json:"jobsCount"`
}

type JobResponse struct {
	Success bool       `json:"success"`
	Data    domain.Job `json:"data"`
	Message string     `json:"message,omitempty"`
}

type JobListResponse struct {
	Success bool         `json:"success"`
	Data    []domain.Job `json:"data"`
	Count   int          `json:"count"`
}

type HoldResponse struct {
	Success   bool      `json:"success"`
	HoldUntil time.Time `json:"holdUntil"`
	Message   string    `json:"message"`
}

type DispatchResponse struct {
	Success   bool                   `json:"success"`
	Contacted int                    `json:"contacted"`
	Replies   []engine.Reply         `json:"replies"`
	Summary   engine.DispatchSummary `json:"summary"`
}

type DraftResponse struct {
	Success bool         `json:"success"`
	Draft   domain.Draft `json:"draft"`
}

type PublishResponse struct {
	Success bool       `json:"success"`
	Job     domain.Job `json:"job"`
	Message string     `json:"message"`
}

type AnalyzeImageResponse struct {
	Success          bool                    `json:"success"`
	Analysis         domain.Analysis         `json:"analysis"`
	SuggestedUpdates domain.SuggestedUpdates `json:"suggested_updates"`
}

type EventListResponse struct {
	Success bool           `json:"success"`
	Events  []domain.Event `json:"events"`
	Count   int            `json:"count"`
}

type OfferListResponse struct {
	Success bool           `json:"success"`
	Offers  []domain.Offer `json:"offers"`
	Count   int            `json:"count"`
}

type AcceptOfferResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Job     domain.Job     `json:"job"`
	Offer   domain.Offer   `json:"offer"`
	Booking domain.Booking `json:"booking"`
}

type BookingResponse struct {
	Success bool           `json:"success"`
	Booking domain.Booking `json:"booking"`
}

// AvailabilityResponse carries a null availability when none is live.
type AvailabilityResponse struct {
	Success      bool                 `json:"success"`
	Availability *domain.Availability `json:"availability"`
}

type AvailabilityListResponse struct {
	Success      bool                  `json:"success"`
	Availability []domain.Availability `json:"availability"`
	Count        int                   `json:"count"`
}

type ContractorListResponse struct {
	Success     bool                   `json:"success"`
	Contractors []directory.Contractor `json:"contractors"`
	Count       int                    `json:"count"`
	Stale       bool                   `json:"stale"`
	FetchedAt   time.Time              `json:"fetchedAt"`
}

type NeighborhoodListResponse struct {
	Success       bool                     `json:"success"`
	Neighborhoods []directory.Neighborhood `json:"neighborhoods"`
	Count         int                      `json:"count"`
}

type RefreshResponse struct {
	Success       bool `json:"success"`
	Count         int  `json:"count"`
	Neighborhoods int  `json:"neighborhoods"`
}
