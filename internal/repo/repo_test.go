package repo

import (
	"errors"
	"testing"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/geo"
)

var now = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

func buildJob(addr string) func(string) (domain.Job, error) {
	return func(id string) (domain.Job, error) {
		p := geo.Synthesize(addr)
		return domain.NewJob(id, domain.JobInput{Address: addr, Description: "leak", CustomerName: "A", Phone: "1"}, p.Lat, p.Lng, now)
	}
}

func TestJobStoreSequentialIDsSkipImported(t *testing.T) {
	s := NewJobStore()
	if err := s.Import(domain.Job{ID: "2", Address: "x", Lat: 37.75, Lng: -122.42}); err != nil {
		t.Fatalf("import: %v", err)
	}
	j, err := s.Create(buildJob("1 Test St"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.ID != "3" {
		t.Fatalf("expected id 3, got %s", j.ID)
	}
	j, _ = s.Create(buildJob("2 Test St"))
	if j.ID != "4" {
		t.Fatalf("expected id 4, got %s", j.ID)
	}
	if err := s.Import(domain.Job{ID: "3"}); err == nil {
		t.Fatalf("expected duplicate import error")
	}
	list := s.List()
	if len(list) != 3 || list[0].ID != "2" || list[2].ID != "4" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestJobStoreCreateValidation(t *testing.T) {
	s := NewJobStore()
	_, err := s.Create(func(id string) (domain.Job, error) {
		return domain.NewJob(id, domain.JobInput{Address: "1 Test St"}, 0, 0, now)
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("invalid job stored")
	}
}

func TestJobStoreHoldAndAssign(t *testing.T) {
	s := NewJobStore()
	j, _ := s.Create(buildJob("1 Test St"))
	until := now.Add(10 * time.Minute)
	held, err := s.Hold(j.ID, until)
	if err != nil || held.Status != domain.JobHeld || !held.HoldUntil.Equal(until) {
		t.Fatalf("hold: %+v %v", held, err)
	}
	assigned, err := s.Assign(j.ID, Assignment{ContractorName: "Quick Plumbing Pro", Price: 300, At: now, BookingID: "booking-1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Status != domain.JobAssigned || *assigned.FinalPrice != 300 || assigned.BookingID != "booking-1" {
		t.Fatalf("unexpected assigned job %+v", assigned)
	}
	var ce *domain.ConflictError
	if _, err := s.Assign(j.ID, Assignment{ContractorName: "Other"}); !errors.As(err, &ce) {
		t.Fatalf("second assign should conflict, got %v", err)
	}
	if _, err := s.Hold(j.ID, until); !errors.As(err, &ce) {
		t.Fatalf("hold of assigned job should conflict, got %v", err)
	}
	if _, err := s.Hold("missing", until); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHealCoordinates(t *testing.T) {
	s := NewJobStore()
	if err := s.Import(domain.Job{ID: "1", Address: "10 Bad Coords Way", Lat: 40.71, Lng: -74.0}); err != nil {
		t.Fatalf("import: %v", err)
	}
	s.Create(buildJob("1 Test St"))
	fixed := s.HealCoordinates()
	if len(fixed) != 1 || fixed[0] != "1" {
		t.Fatalf("fixed %v", fixed)
	}
	j, _ := s.Get("1")
	want := geo.Synthesize("10 Bad Coords Way")
	if j.Lat != want.Lat || j.Lng != want.Lng {
		t.Fatalf("coordinates not healed: %+v", j)
	}
	if again := s.HealCoordinates(); len(again) != 0 {
		t.Fatalf("heal not idempotent: %v", again)
	}
}

func TestDraftStoreTake(t *testing.T) {
	s := NewDraftStore()
	d, _ := domain.NewDraft("draft-1", "sink is leaking", "", now)
	s.Put(d)
	urgency := "high"
	got, err := s.Update("draft-1", func(d *domain.Draft) error {
		return domain.DraftPatch{Urgency: &urgency}.Apply(d)
	})
	if err != nil || got.Urgency != domain.UrgencyHigh || got.ID != "draft-1" {
		t.Fatalf("update: %+v %v", got, err)
	}
	bad := "whenever"
	if _, err := s.Update("draft-1", func(d *domain.Draft) error {
		return domain.DraftPatch{Urgency: &bad}.Apply(d)
	}); err == nil {
		t.Fatalf("expected invalid urgency")
	}
	if cur, _ := s.Get("draft-1"); cur.Urgency != domain.UrgencyHigh {
		t.Fatalf("failed patch mutated draft")
	}
	if _, err := s.Take("draft-1"); err != nil {
		t.Fatalf("take: %v", err)
	}
	if _, err := s.Get("draft-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("draft still present: %v", err)
	}
}

func TestAvailabilityReplaceOnWrite(t *testing.T) {
	s := NewAvailabilityStore()
	a, _ := domain.NewAvailability("pro-1", domain.AvailabilityInput{Skills: []string{"plumbing"}}, now)
	if s.Put(a) {
		t.Fatalf("first put reported existing record")
	}
	b, _ := domain.NewAvailability("pro-1", domain.AvailabilityInput{Skills: []string{"electrical"}, RadiusMeters: 800}, now)
	if !s.Put(b) {
		t.Fatalf("second put should replace")
	}
	got, ok := s.Get("pro-1")
	if !ok || got.RadiusMeters != 800 || !got.HasSkill("Electrical") || got.HasSkill("plumbing") {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(s.List()) != 1 {
		t.Fatalf("expected one record")
	}
	if !s.Delete("pro-1") || s.Delete("pro-1") {
		t.Fatalf("delete semantics broken")
	}
}

func TestBookingAndOfferLookups(t *testing.T) {
	offers := NewOfferStore()
	offers.Add(domain.Offer{ID: "o1", JobID: "1"}, domain.Offer{ID: "o2", JobID: "2"}, domain.Offer{ID: "o3", JobID: "1"})
	if got := offers.ByJob("1"); len(got) != 2 || got[1].ID != "o3" {
		t.Fatalf("by job %+v", got)
	}
	if got := offers.ByJob("9"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
	if _, err := offers.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found")
	}
	bookings := NewBookingStore()
	bookings.Add(domain.Booking{ID: "b1", JobID: "1"})
	if b, err := bookings.ByJob("1"); err != nil || b.ID != "b1" {
		t.Fatalf("by job: %+v %v", b, err)
	}
	if _, err := bookings.Get("b2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found")
	}
}
