package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/events"
	"github.com/rafaelmaranon/FixNow/internal/repo"
	"github.com/rafaelmaranon/FixNow/internal/stage"
)

// Acceptance is the result of accepting an offer.
type Acceptance struct {
	Job     domain.Job     `json:"job"`
	Offer   domain.Offer   `json:"offer"`
	Booking domain.Booking `json:"booking"`
}

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// ETAMinutes turns an offer's ETA text into minutes. Hour ranges like
// "2-3 hours" count as 150, any other hour value as 60, and anything
// unparseable as 60.
func ETAMinutes(eta string) int {
	lower := strings.ToLower(eta)
	if strings.Contains(lower, "hour") {
		if strings.Contains(lower, "2-3") {
			return 150
		}
		return 60
	}
	if m := leadingInt.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 60
}

// ArrivalWindow is the slack around the promised arrival time.
func ArrivalWindow(etaMin int) int {
	if etaMin > 60 {
		return 30
	}
	return 15
}

// AcceptOffer books the offer's contractor. Only one offer per job can
// ever be accepted; later attempts fail with a ConflictError.
func (e Engine) AcceptOffer(ctx context.Context, offerID string) (Acceptance, error) {
	if strings.TrimSpace(offerID) == "" {
		return Acceptance{}, &domain.ValidationError{Fields: []string{"offerId"}}
	}
	offer, err := e.Stores.Offers.Get(offerID)
	if err != nil {
		return Acceptance{}, err
	}
	now := e.now()
	etaMin := ETAMinutes(offer.ETA)
	booking := domain.Booking{
		ID:             newID("booking"),
		JobID:          offer.JobID,
		ContractorID:   offer.ContractorID,
		ContractorName: offer.ContractorName,
		Price:          offer.Price,
		ETAMin:         etaMin,
		ArrivalBy:      now.Add(time.Duration(etaMin) * time.Minute),
		WindowMin:      ArrivalWindow(etaMin),
		Phone:          e.Config.Booking.ContactPhone,
		Status:         "confirmed",
		CreatedAt:      now,
	}
	job, err := e.Stores.Jobs.Assign(offer.JobID, repo.Assignment{
		ContractorName: offer.ContractorName,
		Price:          offer.Price,
		At:             now,
		BookingID:      booking.ID,
	})
	if err != nil {
		return Acceptance{}, err
	}
	e.Stores.Bookings.Add(booking)

	e.Events.Record(events.Entry{
		Agent:    domain.AgentHomeowner,
		Action:   "selected offer",
		JobID:    job.ID,
		Audience: domain.AudienceHomeowner,
		Details:  map[string]any{"offerId": offer.ID, "contractor": offer.ContractorName, "price": offer.Price},
		Message:  fmt.Sprintf("Perfect! Let's go with %s for %s.", offer.ContractorName, money(offer.Price)),
	})
	e.Scheduler.Start(job.ID, e.bookingRound(booking)...)
	e.Logger.Info("offer accepted", "job", job.ID, "offer", offer.ID, "booking", booking.ID)
	return Acceptance{Job: job, Offer: offer, Booking: booking}, nil
}

func (e Engine) bookingRound(b domain.Booking) []stage.Step {
	pacing := e.Config.Pacing
	return []stage.Step{
		stage.Do(config.MS(pacing.AwardDelayMS), "awarded job", func(context.Context) error {
			e.Events.Record(events.Entry{
				Agent:        domain.AgentDispatcher,
				Action:       "awarded job",
				JobID:        b.JobID,
				Audience:     domain.AudienceBoth,
				ContractorID: b.ContractorID,
				Details: map[string]any{
					"bookingId":  b.ID,
					"contractor": b.ContractorName,
					"arrivalBy":  b.ArrivalBy.In(e.Config.Location()).Format("3:04 PM"),
					"eta":        fmt.Sprintf("~%d min", b.ETAMin),
					"window":     b.WindowMin,
				},
				Message: fmt.Sprintf("Done! Awarded to %s. ETA %d minutes.", b.ContractorName, b.ETAMin),
			})
			return nil
		}),
		stage.Do(config.MS(pacing.ConfirmDelayMS), "confirmed booking", func(context.Context) error {
			e.Events.Record(events.Entry{
				Agent:        domain.AgentContractor,
				Action:       "confirmed booking",
				JobID:        b.JobID,
				Audience:     domain.AudienceBoth,
				ContractorID: b.ContractorID,
				Details:      map[string]any{"bookingId": b.ID, "contractorName": b.ContractorName, "phone": b.Phone},
				Message:      fmt.Sprintf("%s: Confirmed! I'll head out now.", b.ContractorName),
			})
			return nil
		}),
	}
}

func (e Engine) OffersForJob(ctx context.Context, jobID string) ([]domain.Offer, error) {
	if _, err := e.Stores.Jobs.Get(jobID); err != nil {
		return nil, err
	}
	return e.Stores.Offers.ByJob(jobID), nil
}

func (e Engine) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	return e.Stores.Bookings.Get(id)
}

func (e Engine) BookingForJob(ctx context.Context, jobID string) (domain.Booking, error) {
	return e.Stores.Bookings.ByJob(jobID)
}

func (e Engine) ListBookings(ctx context.Context) []domain.Booking {
	return e.Stores.Bookings.List()
}
