package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/events"
	"github.com/rafaelmaranon/FixNow/internal/geo"
	"github.com/rafaelmaranon/FixNow/internal/stage"
)

// CreateJob validates and stores a new job, records its publication and
// schedules the offer round. It returns before any offer exists.
func (e Engine) CreateJob(ctx context.Context, in domain.JobInput) (domain.Job, error) {
	p := geo.Synthesize(in.Address)
	job, err := e.Stores.Jobs.Create(func(id string) (domain.Job, error) {
		return domain.NewJob(id, in, p.Lat, p.Lng, e.now())
	})
	if err != nil {
		return domain.Job{}, err
	}
	e.healCoordinates()
	e.Events.Record(events.Entry{
		Agent:    domain.AgentHomeowner,
		Action:   "published job",
		JobID:    job.ID,
		Audience: domain.AudienceHomeowner,
		Details:  map[string]any{"category": job.Category, "price": job.Price},
	})
	e.Scheduler.Start(job.ID, e.offerRound(job)...)
	e.Logger.Info("job created", "job", job.ID, "category", job.Category)
	return job, nil
}

// offerRound broadcasts the request for offers, generates them and
// reports the collected set.
func (e Engine) offerRound(job domain.Job) []stage.Step {
	pacing := e.Config.Pacing
	return []stage.Step{
		stage.Do(config.MS(pacing.RFODelayMS), "sent RFO", func(ctx context.Context) error {
			e.Events.Record(events.Entry{
				Agent:    domain.AgentDispatcher,
				Action:   "sent RFO",
				JobID:    job.ID,
				Audience: domain.AudienceBoth,
				Details:  map[string]any{"contractors": 2, "label": "Request for Offers"},
			})
			generated := e.Offers.Generate(ctx, job)
			e.Events.Record(events.Entry{
				Agent:        domain.AgentContractor,
				Action:       "generated offers",
				JobID:        job.ID,
				Audience:     domain.AudienceContractor,
				ContractorID: generated[0].ContractorID,
				Details:      map[string]any{"count": len(generated)},
			})
			return nil
		}),
		stage.Do(config.MS(pacing.CollectDelayMS), "collected offers", func(context.Context) error {
			e.Events.Record(events.Entry{
				Agent:    domain.AgentDispatcher,
				Action:   "collected offers",
				JobID:    job.ID,
				Audience: domain.AudienceBoth,
				Details:  map[string]any{"offers": summarize(e.Stores.Offers.ByJob(job.ID))},
			})
			return nil
		}),
	}
}

func summarize(list []domain.Offer) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, o := range list {
		out = append(out, map[string]any{"contractor": o.ContractorName, "price": o.Price, "eta": o.ETA})
	}
	return out
}

func (e Engine) healCoordinates() {
	if fixed := e.Stores.Jobs.HealCoordinates(); len(fixed) > 0 {
		e.Logger.Info("re-synthesized job coordinates", "jobs", strings.Join(fixed, ","))
	}
}

// HoldJob reserves the job for minutes. Holds never expire on their own.
func (e Engine) HoldJob(ctx context.Context, jobID string, minutes int) (domain.Job, error) {
	if strings.TrimSpace(jobID) == "" || minutes == 0 {
		return domain.Job{}, &domain.ValidationError{Fields: []string{"jobId", "minutes"}, Reason: "jobId and minutes are required"}
	}
	if minutes < 0 {
		return domain.Job{}, &domain.ValidationError{Fields: []string{"minutes"}, Reason: "invalid minutes: must be positive"}
	}
	until := e.now().Add(time.Duration(minutes) * time.Minute)
	job, err := e.Stores.Jobs.Hold(jobID, until)
	if err != nil {
		return domain.Job{}, err
	}
	e.Logger.Info("job held", "job", jobID, "until", until.Format(time.RFC3339))
	return job, nil
}

func (e Engine) GetJob(ctx context.Context, id string) (domain.Job, error) {
	return e.Stores.Jobs.Get(id)
}

func (e Engine) ListJobs(ctx context.Context) []domain.Job {
	return e.Stores.Jobs.List()
}

// ImportJobs loads prebuilt jobs, then repairs any coordinates outside
// the demo area.
func (e Engine) ImportJobs(ctx context.Context, jobs []domain.Job) error {
	for i := range jobs {
		if jobs[i].CreatedAt.IsZero() {
			jobs[i].CreatedAt = e.now()
		}
		if jobs[i].Urgency == "" {
			jobs[i].Urgency = domain.UrgencyMedium
		}
	}
	if err := e.Stores.Jobs.Import(jobs...); err != nil {
		return fmt.Errorf("import jobs: %w", err)
	}
	e.healCoordinates()
	return nil
}
