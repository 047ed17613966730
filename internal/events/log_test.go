package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/domain"
)

func newTestLog() *Log {
	l := NewLog(DefaultCapacity)
	l.Now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestRecordDefaultsMessage(t *testing.T) {
	l := newTestLog()
	evt := l.Record(Entry{Agent: domain.AgentHomeowner, Action: "published job", JobID: "7", Audience: domain.AudienceHomeowner})
	if evt.Message != "Homeowner Agent published job for Job #7" {
		t.Fatalf("unexpected message %q", evt.Message)
	}
	if evt.ConversationStyle {
		t.Fatalf("templated message flagged as conversation")
	}
	if evt.ID == "" || evt.Details == nil {
		t.Fatalf("missing id or details: %+v", evt)
	}
	scripted := l.Record(Entry{Agent: domain.AgentContractor, Action: "confirmed booking", Message: "On my way."})
	if !scripted.ConversationStyle || scripted.Message != "On my way." {
		t.Fatalf("scripted message not kept: %+v", scripted)
	}
	plain := l.Record(Entry{Agent: domain.AgentSystem, Action: "started"})
	if plain.Message != "System started" || plain.Audience != domain.AudienceBoth {
		t.Fatalf("unexpected defaults %+v", plain)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	l := newTestLog()
	for i := 1; i <= DefaultCapacity+1; i++ {
		l.Record(Entry{Agent: domain.AgentSystem, Action: fmt.Sprintf("step %d", i)})
	}
	if l.Len() != DefaultCapacity {
		t.Fatalf("len %d", l.Len())
	}
	all, matched := l.List(Query{})
	if len(all) != DefaultCapacity || matched != DefaultCapacity {
		t.Fatalf("list returned %d (matched %d)", len(all), matched)
	}
	for _, evt := range all {
		if evt.Action == "step 1" {
			t.Fatalf("oldest event still present")
		}
	}
	if all[0].Action != fmt.Sprintf("step %d", DefaultCapacity+1) || all[len(all)-1].Action != "step 2" {
		t.Fatalf("unexpected order: first %q last %q", all[0].Action, all[len(all)-1].Action)
	}
}

func TestListAudienceFilter(t *testing.T) {
	l := newTestLog()
	l.Record(Entry{Agent: domain.AgentHomeowner, Action: "published job", Audience: domain.AudienceHomeowner})
	l.Record(Entry{Agent: domain.AgentDispatcher, Action: "sent RFO", Audience: domain.AudienceBoth})
	l.Record(Entry{Agent: domain.AgentContractor, Action: "generated offers", Audience: domain.AudienceContractor})

	home, n := l.List(Query{Limit: 10, Audience: domain.AudienceHomeowner})
	if n != 2 || home[0].Action != "sent RFO" || home[1].Action != "published job" {
		t.Fatalf("homeowner feed: %+v", home)
	}
	pro, _ := l.List(Query{Limit: 10, Audience: domain.AudienceContractor})
	if len(pro) != 2 || pro[0].Action != "generated offers" {
		t.Fatalf("contractor feed: %+v", pro)
	}
	all, _ := l.List(Query{Limit: 10, Audience: domain.AudienceBoth})
	if len(all) != 3 {
		t.Fatalf("both feed should be unfiltered, got %d", len(all))
	}
	limited, matched := l.List(Query{Limit: 1})
	if len(limited) != 1 || matched != 3 || limited[0].Action != "generated offers" {
		t.Fatalf("limit: %+v matched %d", limited, matched)
	}
}

func TestListContractorFeed(t *testing.T) {
	l := newTestLog()
	l.Record(Entry{Agent: domain.AgentDispatcher, Action: "sent RFO", Audience: domain.AudienceBoth})
	l.Record(Entry{Agent: domain.AgentContractor, Action: "generated offers", Audience: domain.AudienceContractor, ContractorID: "contractor-fast"})
	l.Record(Entry{Agent: domain.AgentContractor, Action: "submitted offer", Audience: domain.AudienceBoth, ContractorID: "contractor-budget"})
	l.Record(Entry{Agent: domain.AgentHomeowner, Action: "selected offer", Audience: domain.AudienceHomeowner})

	feed, n := l.List(Query{Limit: 10, ContractorID: "contractor-fast"})
	if n != 2 || feed[0].Action != "generated offers" || feed[1].Action != "sent RFO" {
		t.Fatalf("fast feed: %+v", feed)
	}
	feed, n = l.List(Query{Limit: 10, ContractorID: "contractor-budget"})
	if n != 2 || feed[0].Action != "submitted offer" {
		t.Fatalf("budget feed: %+v", feed)
	}
}

func TestSince(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 5; i++ {
		l.Record(Entry{Agent: domain.AgentSystem, Action: fmt.Sprintf("e%d", i)})
	}
	got := l.Since(0, 0)
	if len(got) != 3 || got[0].Action != "e2" || got[2].Action != "e4" {
		t.Fatalf("since 0: %+v", got)
	}
	got = l.Since(got[0].Seq, 1)
	if len(got) != 1 || got[0].Action != "e3" {
		t.Fatalf("since cursor: %+v", got)
	}
	if l.LastSeq() != 5 {
		t.Fatalf("last seq %d", l.LastSeq())
	}
}
