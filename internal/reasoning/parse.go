package reasoning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rafaelmaranon/FixNow/internal/domain"
)

// stripFences removes a markdown code fence around a JSON reply.
func stripFences(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func parseProposals(raw []byte) ([]Proposal, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformed)
	}
	if !gjson.Valid(text) {
		p, ok := salvageProposal(text)
		if !ok {
			return nil, fmt.Errorf("%w: nothing readable", ErrMalformed)
		}
		return []Proposal{p}, nil
	}
	root := gjson.Parse(text)
	list := root.Get("offers")
	if !list.Exists() {
		list = root
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: offers is not an array", ErrMalformed)
	}
	var out []Proposal
	list.ForEach(func(_, v gjson.Result) bool {
		p := Proposal{
			ContractorID:   v.Get("contractorId").String(),
			ContractorName: firstString(v, "contractorName", "contractor_name", "name"),
			Price:          v.Get("price").Float(),
			ETA:            v.Get("eta").String(),
			Message:        v.Get("message").String(),
			Rating:         v.Get("rating").Float(),
			Type:           domain.OfferType(v.Get("type").String()),
		}
		if p.Price > 0 {
			out = append(out, p)
		}
		return true
	})
	return out, nil
}

func firstString(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := v.Get(p).String(); s != "" {
			return s
		}
	}
	return ""
}

var (
	rePrice   = regexp.MustCompile(`"price"\s*:\s*"?\$?(\d+(?:\.\d+)?)`)
	reDollar  = regexp.MustCompile(`\$\s?(\d+(?:\.\d+)?)`)
	reName    = regexp.MustCompile(`"(?:contractorName|contractor_name|name)"\s*:\s*"([^"]+)"`)
	reETA     = regexp.MustCompile(`"eta"\s*:\s*"([^"]+)"`)
	reETAText = regexp.MustCompile(`(?i)\b(\d+(?:-\d+)?\s*(?:hours?|hrs?|minutes?|mins?))\b`)
	reMessage = regexp.MustCompile(`"message"\s*:\s*"([^"]+)"`)
)

// salvageProposal pulls whatever fields it can read out of a broken reply.
// A price is the minimum it needs.
func salvageProposal(text string) (Proposal, bool) {
	p := Proposal{Salvaged: true}
	if v := gjson.Get(text, "offers.0.price"); v.Exists() && v.Float() > 0 {
		p.Price = v.Float()
	} else if m := rePrice.FindStringSubmatch(text); m != nil {
		p.Price, _ = strconv.ParseFloat(m[1], 64)
	} else if m := reDollar.FindStringSubmatch(text); m != nil {
		p.Price, _ = strconv.ParseFloat(m[1], 64)
	}
	if p.Price <= 0 {
		return Proposal{}, false
	}
	if m := reName.FindStringSubmatch(text); m != nil {
		p.ContractorName = m[1]
	}
	if m := reETA.FindStringSubmatch(text); m != nil {
		p.ETA = m[1]
	} else if m := reETAText.FindStringSubmatch(text); m != nil {
		p.ETA = m[1]
	}
	if m := reMessage.FindStringSubmatch(text); m != nil {
		p.Message = m[1]
	}
	return p, true
}

func parseAnalysis(raw []byte) (domain.Analysis, error) {
	text := stripFences(raw)
	if !gjson.Valid(text) {
		return domain.Analysis{}, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	root := gjson.Parse(text)
	if inner := root.Get("analysis"); inner.IsObject() {
		root = inner
	}
	a := domain.Analysis{
		SuspectedIssue: root.Get("suspected_issue").String(),
		Confidence:     root.Get("confidence").Float(),
		PhotoInsights:  stringList(root.Get("photo_insights")),
		PossibleCauses: stringList(root.Get("possible_causes")),
		RiskNotes:      stringList(root.Get("risk_notes")),
		LocalPriceBand: root.Get("local_price_band").String(),
	}
	if a.SuspectedIssue == "" {
		return domain.Analysis{}, fmt.Errorf("%w: suspected_issue missing", ErrMalformed)
	}
	root.Get("clarifying_questions").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			a.ClarifyingQuestions = append(a.ClarifyingQuestions, domain.Question{Question: v.String()})
			return true
		}
		a.ClarifyingQuestions = append(a.ClarifyingQuestions, domain.Question{
			Question: v.Get("question").String(),
			Options:  stringList(v.Get("options")),
		})
		return true
	})
	root.Get("common_fixes").ForEach(func(_, v gjson.Result) bool {
		a.CommonFixes = append(a.CommonFixes, domain.Fix{
			Name:    v.Get("name").String(),
			TimeMin: int(v.Get("time_min").Int()),
			Parts:   stringList(v.Get("parts")),
			Est:     [2]float64{v.Get("est.0").Float(), v.Get("est.1").Float()},
		})
		return true
	})
	return a, nil
}

func stringList(v gjson.Result) []string {
	var out []string
	v.ForEach(func(_, item gjson.Result) bool {
		if s := item.String(); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}
