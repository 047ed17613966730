// Package triage turns a photo and a line of context into a structured
// diagnosis. The built-in diagnoses are keyword matched; an external
// reasoning service can replace them.
package triage

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/reasoning"
)

// Diagnoser is implemented by reasoning.Service.
type Diagnoser interface {
	Triage(ctx context.Context, req reasoning.TriageRequest) (domain.Analysis, error)
}

type Result struct {
	Analysis  domain.Analysis         `json:"analysis"`
	Suggested domain.SuggestedUpdates `json:"suggested_updates"`
}

type Analyzer struct {
	Diagnoser Diagnoser
	Logger    *slog.Logger
}

// Analyze never fails: external errors fall back to the built-in diagnosis.
func (a *Analyzer) Analyze(ctx context.Context, imageURL, note string) Result {
	if a.Diagnoser != nil {
		analysis, err := a.Diagnoser.Triage(ctx, reasoning.TriageRequest{Context: note, ImageURL: imageURL})
		if err == nil {
			return Result{Analysis: analysis, Suggested: Suggest(analysis, note)}
		}
		logger := a.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("triage failed, using built-in diagnosis", "err", err)
	}
	analysis := Canned(note)
	return Result{Analysis: analysis, Suggested: Suggest(analysis, note)}
}

type family int

const (
	familyGeneral family = iota
	familyPlumbing
	familyElectrical
	familyHVAC
)

var familyKeywords = []struct {
	family   family
	keywords []string
}{
	{familyPlumbing, []string{"leak", "plumb", "pipe", "drain", "faucet", "toilet", "water"}},
	{familyElectrical, []string{"electri", "outlet", "breaker", "socket", "wiring", "light"}},
	{familyHVAC, []string{"hvac", "furnace", "heater", "heating", "thermostat", "air condition"}},
}

func classify(text string) family {
	lower := strings.ToLower(text)
	for _, fk := range familyKeywords {
		for _, kw := range fk.keywords {
			if strings.Contains(lower, kw) {
				return fk.family
			}
		}
	}
	return familyGeneral
}

// Canned returns the built-in diagnosis for the homeowner's note.
func Canned(note string) domain.Analysis {
	switch classify(note) {
	case familyPlumbing:
		return domain.Analysis{
			SuspectedIssue: "P-trap leak",
			Confidence:     0.78,
			PhotoInsights:  []string{"Water droplets visible near pipe joint", "Possible corrosion on fitting"},
			PossibleCauses: []string{"Loose slip nut", "Worn washer", "Cracked P-trap"},
			ClarifyingQuestions: []domain.Question{
				{Question: "Is the leak constant or only when water is running?", Options: []string{"Constant", "Only when running", "Not sure"}},
				{Question: "How old is the sink plumbing?", Options: []string{"Less than 5 years", "5-15 years", "Over 15 years"}},
			},
			CommonFixes: []domain.Fix{
				{Name: "Tighten slip nuts", TimeMin: 15, Parts: []string{}, Est: [2]float64{75, 125}},
				{Name: "Replace washers", TimeMin: 30, Parts: []string{"washer kit"}, Est: [2]float64{95, 160}},
				{Name: "Replace P-trap", TimeMin: 45, Parts: []string{"P-trap assembly"}, Est: [2]float64{150, 250}},
			},
			RiskNotes:      []string{"Water damage to cabinet if left unattended"},
			LocalPriceBand: "$75-$250",
		}
	case familyElectrical:
		return domain.Analysis{
			SuspectedIssue: "Outlet not working",
			Confidence:     0.65,
			PhotoInsights:  []string{"Outlet faceplate visible", "No scorch marks detected"},
			PossibleCauses: []string{"Tripped GFCI", "Tripped breaker", "Loose wiring"},
			ClarifyingQuestions: []domain.Question{
				{Question: "Is it a GFCI outlet?", Options: []string{"Yes", "No", "Not sure"}},
				{Question: "Did you check the breaker panel?", Options: []string{"Yes", "No"}},
			},
			CommonFixes: []domain.Fix{
				{Name: "Reset GFCI or breaker", TimeMin: 10, Parts: []string{}, Est: [2]float64{60, 100}},
				{Name: "Replace outlet", TimeMin: 30, Parts: []string{"outlet", "faceplate"}, Est: [2]float64{120, 200}},
			},
			RiskNotes:      []string{"Safety: turn off the breaker before touching the outlet"},
			LocalPriceBand: "$60-$200",
		}
	case familyHVAC:
		return domain.Analysis{
			SuspectedIssue: "Heating system not producing heat",
			Confidence:     0.55,
			PossibleCauses: []string{"Thermostat settings", "Clogged filter", "Pilot or igniter failure"},
			ClarifyingQuestions: []domain.Question{
				{Question: "Does the blower run?", Options: []string{"Yes", "No"}},
			},
			CommonFixes: []domain.Fix{
				{Name: "Replace filter", TimeMin: 20, Parts: []string{"filter"}, Est: [2]float64{90, 150}},
				{Name: "Igniter replacement", TimeMin: 60, Parts: []string{"igniter"}, Est: [2]float64{200, 400}},
			},
			RiskNotes:      []string{"Safety: if you smell gas, leave the house and call the utility"},
			LocalPriceBand: "$90-$400",
		}
	default:
		return domain.Analysis{
			SuspectedIssue: "General repair needed",
			Confidence:     0.4,
			ClarifyingQuestions: []domain.Question{
				{Question: "Can you describe what stopped working?"},
			},
			LocalPriceBand: "$100-$300",
		}
	}
}

// Suggest derives draft updates from an analysis.
func Suggest(a domain.Analysis, note string) domain.SuggestedUpdates {
	category := "General"
	switch classify(a.SuspectedIssue + " " + note) {
	case familyPlumbing:
		category = "Plumbing"
	case familyElectrical:
		category = "Electrical"
	case familyHVAC:
		category = "HVAC"
	}
	urgency := domain.UrgencyHigh
	for _, note := range a.RiskNotes {
		if strings.Contains(strings.ToLower(note), "safety") {
			urgency = domain.UrgencyEmergency
			break
		}
	}
	return domain.SuggestedUpdates{
		Category:          category,
		Urgency:           urgency,
		DescriptionAppend: " Visible " + strings.ToLower(a.SuspectedIssue) + "; recommend immediate attention.",
	}
}
