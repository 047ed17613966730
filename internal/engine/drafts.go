package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/events"
	"github.com/rafaelmaranon/FixNow/internal/geo"
	"github.com/rafaelmaranon/FixNow/internal/stage"
	"github.com/rafaelmaranon/FixNow/internal/triage"
)

func (e Engine) CreateDraft(ctx context.Context, userInput, category string) (domain.Draft, error) {
	d, err := domain.NewDraft(newID("draft"), userInput, category, e.now())
	if err != nil {
		return domain.Draft{}, err
	}
	e.Stores.Drafts.Put(d)
	return d, nil
}

func (e Engine) GetDraft(ctx context.Context, id string) (domain.Draft, error) {
	return e.Stores.Drafts.Get(id)
}

// PatchDraft shallow-merges p into the draft.
func (e Engine) PatchDraft(ctx context.Context, id string, p domain.DraftPatch) (domain.Draft, error) {
	return e.Stores.Drafts.Update(id, p.Apply)
}

// AnalyzeImage diagnoses a photo. When draftID names a draft, the
// suggested category and urgency and the analysis are saved on it.
func (e Engine) AnalyzeImage(ctx context.Context, draftID, imageURL, note string) (triage.Result, error) {
	if draftID != "" {
		if _, err := e.Stores.Drafts.Get(draftID); err != nil {
			return triage.Result{}, err
		}
	}
	res := e.Triage.Analyze(ctx, imageURL, note)
	if draftID == "" {
		return res, nil
	}
	category := res.Suggested.Category
	urgency := string(res.Suggested.Urgency)
	analysis := res.Analysis
	_, err := e.Stores.Drafts.Update(draftID, domain.DraftPatch{
		Category: &category,
		Urgency:  &urgency,
		Analysis: &analysis,
	}.Apply)
	if err != nil {
		return triage.Result{}, err
	}
	return res, nil
}

// PublishDraft turns a draft into a job and scripts the conversation
// that follows: the request for offers, each offer as it arrives and
// finally the options summary. The draft is gone once this returns.
func (e Engine) PublishDraft(ctx context.Context, id string) (domain.Job, error) {
	d, err := e.Stores.Drafts.Take(id)
	if err != nil {
		return domain.Job{}, err
	}
	job, err := e.createFromDraft(d)
	if err != nil {
		e.Stores.Drafts.Put(d)
		return domain.Job{}, err
	}
	e.healCoordinates()

	category := job.Category
	e.Events.Record(events.Entry{
		Agent:    domain.AgentHomeowner,
		Action:   "published job",
		JobID:    job.ID,
		Audience: domain.AudienceHomeowner,
		Details:  map[string]any{"category": job.Category, "price": job.Price, "draftId": d.ID},
		Message: fmt.Sprintf("My %s needs fixing in %s! Budget around %s.",
			strings.ToLower(category), neighborhood(job.Address), money(job.Price)),
	})
	e.Scheduler.Start(job.ID, e.publishRound(job)...)
	e.Logger.Info("draft published", "draft", d.ID, "job", job.ID)
	return job, nil
}

func (e Engine) createFromDraft(d domain.Draft) (domain.Job, error) {
	demo := e.Config.Drafts
	price := float64(150 + e.random(300))
	if d.BudgetHint != nil && *d.BudgetHint > 0 {
		price = *d.BudgetHint
	}
	description := d.Description
	if d.Analysis != nil && d.Analysis.SuspectedIssue != "" {
		description += " (" + d.Analysis.SuspectedIssue + ")"
	}
	category := d.Category
	if category == "" || category == "unknown" {
		category = "General"
	}
	in := domain.JobInput{
		Category:     category,
		Address:      demo.DemoAddress,
		Description:  description,
		CustomerName: demo.DemoCustomer,
		Phone:        demo.DemoPhone,
		Price:        price,
		Urgency:      string(d.Urgency),
	}
	p := geo.Synthesize(in.Address)
	return e.Stores.Jobs.Create(func(id string) (domain.Job, error) {
		job, err := domain.NewJob(id, in, p.Lat, p.Lng, e.now())
		if err != nil {
			return domain.Job{}, err
		}
		job.Media = append([]string(nil), d.Attachments...)
		if d.Analysis != nil {
			a := *d.Analysis
			job.Analysis = &a
		}
		return job, nil
	})
}

func (e Engine) publishRound(job domain.Job) []stage.Step {
	pacing := e.Config.Pacing
	return []stage.Step{
		stage.Expand(config.MS(pacing.PublishRFODelayMS), "sent RFO", func(ctx context.Context) ([]stage.Step, error) {
			e.Events.Record(events.Entry{
				Agent:    domain.AgentDispatcher,
				Action:   "sent RFO",
				JobID:    job.ID,
				Audience: domain.AudienceBoth,
				Details:  map[string]any{"contractors": 3},
				Message:  fmt.Sprintf("Got it! I'll reach out to available %s contractors nearby.", strings.ToLower(job.Category)),
			})
			generated := e.Offers.Generate(ctx, job)
			steps := make([]stage.Step, 0, len(generated)+1)
			for i, o := range generated {
				delay := config.MS(pacing.OfferStaggerMS)
				if i == 0 {
					delay = config.MS(pacing.OfferIntroDelayMS)
				}
				steps = append(steps, stage.Do(delay, "submitted offer", func(context.Context) error {
					e.recordOffer(job, o)
					return nil
				}))
			}
			steps = append(steps, stage.Do(config.MS(pacing.OfferStaggerMS+pacing.OptionsDelayMS), "presented options", func(context.Context) error {
				e.Events.Record(events.Entry{
					Agent:    domain.AgentDispatcher,
					Action:   "presented options",
					JobID:    job.ID,
					Audience: domain.AudienceHomeowner,
					Details:  map[string]any{"offers": summarize(generated)},
					Message:  optionsMessage(generated),
				})
				return nil
			}))
			return steps, nil
		}),
	}
}

func (e Engine) recordOffer(job domain.Job, o domain.Offer) {
	label := "Budget"
	if o.Type == domain.OfferFast {
		label = "Quick"
	}
	e.Events.Record(events.Entry{
		Agent:        domain.AgentContractor,
		Action:       "submitted offer",
		JobID:        job.ID,
		Audience:     domain.AudienceBoth,
		ContractorID: o.ContractorID,
		Details:      map[string]any{"offerId": o.ID, "contractorName": o.ContractorName, "price": o.Price, "eta": o.ETA, "type": o.Type},
		Message:      fmt.Sprintf("%s: I can take it for %s. ETA %s.", label, money(o.Price), o.ETA),
	})
}

func optionsMessage(list []domain.Offer) string {
	var b strings.Builder
	b.WriteString("Here are your options:\n")
	for i, o := range list {
		fmt.Fprintf(&b, "%d. %s / %s\n", i+1, money(o.Price), o.ETA)
	}
	b.WriteString("Which works best for you?")
	return b.String()
}
