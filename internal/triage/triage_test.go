package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/reasoning"
)

type diagnoserFunc func(ctx context.Context, req reasoning.TriageRequest) (domain.Analysis, error)

func (f diagnoserFunc) Triage(ctx context.Context, req reasoning.TriageRequest) (domain.Analysis, error) {
	return f(ctx, req)
}

func TestCannedFamilies(t *testing.T) {
	cases := []struct {
		context  string
		issue    string
		category string
		urgency  domain.Urgency
	}{
		{"kitchen sink leak", "P-trap leak", "Plumbing", domain.UrgencyHigh},
		{"Plumbing problem", "P-trap leak", "Plumbing", domain.UrgencyHigh},
		{"electrical outlet dead", "Outlet not working", "Electrical", domain.UrgencyEmergency},
		{"furnace blowing cold", "Heating system not producing heat", "HVAC", domain.UrgencyEmergency},
		{"door squeaks", "General repair needed", "General", domain.UrgencyHigh},
	}
	a := &Analyzer{}
	for _, c := range cases {
		res := a.Analyze(context.Background(), "https://img.example/1.jpg", c.context)
		if res.Analysis.SuspectedIssue != c.issue {
			t.Fatalf("%q: issue %q", c.context, res.Analysis.SuspectedIssue)
		}
		if res.Suggested.Category != c.category || res.Suggested.Urgency != c.urgency {
			t.Fatalf("%q: suggested %+v", c.context, res.Suggested)
		}
	}
}

func TestPlumbingDiagnosisShape(t *testing.T) {
	a := Canned("leak")
	if a.Confidence != 0.78 || len(a.CommonFixes) == 0 || len(a.ClarifyingQuestions) == 0 || a.LocalPriceBand == "" {
		t.Fatalf("incomplete diagnosis %+v", a)
	}
	for _, f := range a.CommonFixes {
		if f.Est[0] <= 0 || f.Est[1] < f.Est[0] {
			t.Fatalf("bad cost band %+v", f)
		}
	}
}

func TestExternalDiagnosisAndFallback(t *testing.T) {
	ext := &Analyzer{Diagnoser: diagnoserFunc(func(_ context.Context, req reasoning.TriageRequest) (domain.Analysis, error) {
		if req.ImageURL != "https://img.example/2.jpg" {
			t.Errorf("image not forwarded: %+v", req)
		}
		return domain.Analysis{SuspectedIssue: "Cracked drain pipe", Confidence: 0.9}, nil
	})}
	res := ext.Analyze(context.Background(), "https://img.example/2.jpg", "")
	if res.Analysis.SuspectedIssue != "Cracked drain pipe" || res.Suggested.Category != "Plumbing" {
		t.Fatalf("unexpected external result %+v", res)
	}

	failing := &Analyzer{Diagnoser: diagnoserFunc(func(context.Context, reasoning.TriageRequest) (domain.Analysis, error) {
		return domain.Analysis{}, &reasoning.ExternalError{Op: reasoning.OpTriage, Err: errors.New("boom")}
	})}
	res = failing.Analyze(context.Background(), "", "leak under sink")
	if res.Analysis.SuspectedIssue != "P-trap leak" {
		t.Fatalf("expected canned fallback, got %+v", res.Analysis)
	}
}
