package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/directory"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/engine"
	"github.com/rafaelmaranon/FixNow/internal/events"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, dir *directory.Client) (*testServer, func()) {
	t.Helper()
	cfg := config.Default()
	cfg.Pacing = config.Pacing{
		RFODelayMS:        2,
		CollectDelayMS:    2,
		PublishRFODelayMS: 2,
		OfferIntroDelayMS: 2,
		OfferStaggerMS:    2,
		OptionsDelayMS:    2,
		AwardDelayMS:      2,
		ConfirmDelayMS:    2,
		DispatchReplyMS:   2,
	}
	e := engine.New(cfg, engine.Options{Logger: quietLogger()})
	handler, err := New(Config{Engine: e, Directory: dir, BasePath: "/api", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			e.Scheduler.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
}

func settle(t *testing.T, srv *testServer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Engine.Scheduler.Wait(ctx); err != nil {
		t.Fatalf("staged sequences did not finish: %v", err)
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func expectError(t *testing.T, res *http.Response, data []byte, status int, text string) {
	t.Helper()
	if res.StatusCode != status {
		t.Fatalf("expected status %d, got %d: %s", status, res.StatusCode, string(data))
	}
	var body errorBody
	decode(t, data, &body)
	if body.Success || body.Error != text {
		t.Fatalf("expected error %q, got %+v", text, body)
	}
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
	var body HealthResponse
	decode(t, data, &body)
	if !body.Success || body.JobsCount != 0 || body.Timestamp.IsZero() {
		t.Fatalf("unexpected health: %+v", body)
	}
}

func TestCreateJobAndOffers(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/jobs", map[string]any{"category": "Plumbing"}, nil)
	expectError(t, res, data, http.StatusBadRequest, "Missing required fields: address, description, customerName, phone")

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/jobs", map[string]any{
		"category":     "Plumbing",
		"address":      "742 Valencia St, Mission, San Francisco",
		"description":  "Kitchen sink leaking",
		"customerName": "Ana",
		"phone":        "(415) 555-0100",
		"price":        200,
		"source":       "voice",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created JobResponse
	decode(t, data, &created)
	if created.Data.ID != "1" || created.Message != "Job created successfully" || created.Data.Urgency != domain.UrgencyMedium {
		t.Fatalf("unexpected job: %+v", created)
	}

	settle(t, srv)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/jobs/1/offers", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("offers status %d: %s", res.StatusCode, string(data))
	}
	var offers OfferListResponse
	decode(t, data, &offers)
	if offers.Count != 2 || offers.Offers[0].Price != 240 || offers.Offers[1].Price != 180 {
		t.Fatalf("unexpected offers: %+v", offers)
	}

	var feed EventListResponse
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?audience=both", nil, nil)
	decode(t, data, &feed)
	if feed.Count != 4 || feed.Events[3].Action != "published job" {
		t.Fatalf("unexpected feed: %+v", feed)
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?audience=homeowner&limit=2", nil, nil)
	decode(t, data, &feed)
	if feed.Count != 3 || len(feed.Events) != 2 || feed.Events[0].Action != "collected offers" {
		t.Fatalf("unexpected homeowner feed: %+v", feed)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?audience=robots", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad audience status %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/jobs/77", nil, nil)
	expectError(t, res, data, http.StatusNotFound, "Job not found")
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/jobs/77/offers", nil, nil)
	expectError(t, res, data, http.StatusNotFound, "Job not found")
}

func TestEventsCountReportsMatchedTotal(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	for i := 0; i < 8; i++ {
		srv.Engine.Events.Record(events.Entry{Agent: domain.AgentHomeowner, Action: "asked", Audience: domain.AudienceHomeowner})
	}
	for i := 0; i < 6; i++ {
		srv.Engine.Events.Record(events.Entry{Agent: domain.AgentContractor, Action: "replied", Audience: domain.AudienceContractor, ContractorID: "contractor-9"})
	}
	srv.Engine.Events.Record(events.Entry{Agent: domain.AgentContractor, Action: "replied", Audience: domain.AudienceContractor, ContractorID: "contractor-2"})

	var feed EventListResponse
	_, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/events?audience=homeowner&limit=5", nil, nil)
	decode(t, data, &feed)
	if feed.Count != 8 || len(feed.Events) != 5 {
		t.Fatalf("homeowner feed: count %d, %d events", feed.Count, len(feed.Events))
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?limit=4", nil, nil)
	decode(t, data, &feed)
	if feed.Count != 15 || len(feed.Events) != 4 {
		t.Fatalf("full feed: count %d, %d events", feed.Count, len(feed.Events))
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/contractor/contractor-9/feed?limit=3", nil, nil)
	decode(t, data, &feed)
	if feed.Count != 6 || len(feed.Events) != 3 {
		t.Fatalf("contractor feed: count %d, %d events", feed.Count, len(feed.Events))
	}
}

func TestHoldEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	if _, err := srv.Engine.CreateJob(context.Background(), domain.JobInput{
		Address: "1 Market St", Description: "Door stuck", CustomerName: "Lee", Phone: "555",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	before := time.Now()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/hold", map[string]any{"jobId": "1", "minutes": 10}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("hold status %d: %s", res.StatusCode, string(data))
	}
	var held HoldResponse
	decode(t, data, &held)
	want := before.Add(10 * time.Minute)
	if held.HoldUntil.Before(want.Add(-time.Second)) || held.HoldUntil.After(want.Add(time.Second)) {
		t.Fatalf("holdUntil %v not within a second of %v", held.HoldUntil, want)
	}
	if held.Message != "Job held for 10 minutes" {
		t.Fatalf("message %q", held.Message)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/hold", map[string]any{"jobId": "9", "minutes": 10}, nil)
	expectError(t, res, data, http.StatusNotFound, "Job not found")
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/hold", map[string]any{"jobId": "1"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing minutes status %d", res.StatusCode)
	}
}

func TestDraftToBookingFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/drafts", map[string]any{"userInput": "Sink is leaking"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create draft status %d: %s", res.StatusCode, string(data))
	}
	var draft DraftResponse
	decode(t, data, &draft)
	draftID := draft.Draft.ID

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/drafts/"+draftID, map[string]any{
		"budget_hint": 200,
		"id":          "hijacked",
		"status":      "published",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, string(data))
	}
	decode(t, data, &draft)
	if draft.Draft.ID != draftID || draft.Draft.Status != "draft" || draft.Draft.BudgetHint == nil || *draft.Draft.BudgetHint != 200 {
		t.Fatalf("unexpected patched draft: %+v", draft.Draft)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/analyze-image", map[string]any{
		"draftId":  draftID,
		"imageUrl": "https://img.example/sink.jpg",
		"context":  "water under the sink",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("analyze status %d: %s", res.StatusCode, string(data))
	}
	var analysis AnalyzeImageResponse
	decode(t, data, &analysis)
	if analysis.SuggestedUpdates.Category != "Plumbing" || analysis.Analysis.Confidence != 0.78 {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/analyze-image", map[string]any{
		"draftId":  "draft-nope",
		"imageUrl": "https://img.example/sink.jpg",
	}, nil)
	expectError(t, res, data, http.StatusNotFound, "Draft not found")

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/drafts/"+draftID+"/publish", nil, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("publish status %d: %s", res.StatusCode, string(data))
	}
	var published PublishResponse
	decode(t, data, &published)
	if published.Job.Price != 200 || !strings.Contains(published.Job.Description, "(P-trap leak)") {
		t.Fatalf("unexpected published job: %+v", published.Job)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/drafts/"+draftID, nil, nil)
	expectError(t, res, data, http.StatusNotFound, "Draft not found")

	settle(t, srv)
	jobID := published.Job.ID
	var offers OfferListResponse
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/jobs/"+jobID+"/offers", nil, nil)
	decode(t, data, &offers)
	if offers.Count != 2 {
		t.Fatalf("expected 2 offers, got %+v", offers)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/offers/"+offers.Offers[1].ID+"/accept", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status %d: %s", res.StatusCode, string(data))
	}
	var accepted AcceptOfferResponse
	decode(t, data, &accepted)
	if accepted.Booking.ETAMin != 150 || accepted.Booking.WindowMin != 30 || accepted.Job.Status != domain.JobAssigned {
		t.Fatalf("unexpected acceptance: %+v", accepted)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/offers/"+offers.Offers[0].ID+"/accept", nil, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second accept status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/offers/offer-missing/accept", nil, nil)
	expectError(t, res, data, http.StatusNotFound, "Offer not found")

	var booking BookingResponse
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/bookings/"+accepted.Booking.ID, nil, nil)
	decode(t, data, &booking)
	if booking.Booking.JobID != jobID {
		t.Fatalf("unexpected booking: %+v", booking)
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/jobs/"+jobID+"/booking", nil, nil)
	decode(t, data, &booking)
	if booking.Booking.ID != accepted.Booking.ID {
		t.Fatalf("booking by job mismatch: %+v", booking)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/jobs/99/booking", nil, nil)
	expectError(t, res, data, http.StatusNotFound, "No booking found for this job")

	settle(t, srv)
	var feed EventListResponse
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/contractor/"+accepted.Booking.ContractorID+"/feed", nil, nil)
	decode(t, data, &feed)
	if feed.Count == 0 || feed.Events[0].Action != "confirmed booking" {
		t.Fatalf("unexpected contractor feed: %+v", feed)
	}
}

func TestAvailabilityEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/api/contractor/contractor-9/availability"

	res, data := doJSON(t, client, http.MethodPut, base, map[string]any{
		"location":        map[string]any{"address": "Mission", "lat": 37.76, "lng": -122.42},
		"skills":          []string{"Plumbing"},
		"durationMinutes": 60,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put status %d: %s", res.StatusCode, string(data))
	}
	var got AvailabilityResponse
	decode(t, data, &got)
	if got.Availability == nil || got.Availability.RadiusMeters != domain.DefaultRadiusMeters {
		t.Fatalf("unexpected availability: %+v", got)
	}

	var list AvailabilityListResponse
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/availability?skill=plumbing", nil, nil)
	decode(t, data, &list)
	if list.Count != 1 {
		t.Fatalf("expected one live window, got %+v", list)
	}

	res, data = doJSON(t, client, http.MethodPut, base, map[string]any{"radiusMeters": -1}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative radius status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodDelete, base, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", res.StatusCode)
	}
	_, data = doJSON(t, client, http.MethodGet, base, nil, nil)
	if !strings.Contains(string(data), `"availability":null`) {
		t.Fatalf("expected null availability: %s", string(data))
	}
}

func TestDispatchEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/dispatch", map[string]any{
		"strategy": "topNearby",
		"limit":    4,
		"filters":  map[string]any{"category": "Plumbing"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dispatch status %d: %s", res.StatusCode, string(data))
	}
	var body DispatchResponse
	decode(t, data, &body)
	if body.Contacted != 4 || body.Summary.Accepted != 2 || body.Summary.Countered != 1 || body.Summary.Declined != 1 {
		t.Fatalf("unexpected dispatch: %+v", body)
	}
}

func TestContractorDirectoryEndpoints(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/contractors/sf":
			io.WriteString(w, `{"success":true,"contractors":[{"id":"cl-1","name":"Bay Pipes","category":"Plumbing"}]}`)
		case "/neighborhoods":
			io.WriteString(w, `{"success":true,"neighborhoods":[{"key":"mission","name":"Mission"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer feed.Close()
	dir := directory.New(config.Directory{BaseURL: feed.URL, TimeoutMS: 1000, CacheTTLSeconds: 60}, nil, quietLogger())

	srv, cleanup := newTestServer(t, dir)
	defer cleanup()
	client := srv.Client()

	var list ContractorListResponse
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/contractors?category=Plumbing", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("contractors status %d: %s", res.StatusCode, string(data))
	}
	decode(t, data, &list)
	if list.Count != 1 || list.Stale {
		t.Fatalf("unexpected contractors: %+v", list)
	}
	var refresh RefreshResponse
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/contractors/refresh", nil, nil)
	decode(t, data, &refresh)
	if refresh.Count != 1 || refresh.Neighborhoods != 1 {
		t.Fatalf("unexpected refresh: %+v", refresh)
	}

	bare, closeBare := newTestServer(t, nil)
	defer closeBare()
	res, data = doJSON(t, bare.Client(), http.MethodGet, bare.URL+"/api/contractors", nil, nil)
	expectError(t, res, data, http.StatusInternalServerError, "Failed to fetch contractors")
}

func TestOpenAPIAndDocs(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/api/offers/{id}/accept") {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/docs", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/api/openapi.json") {
		t.Fatalf("docs status %d", res.StatusCode)
	}
}

func TestWebhookDeliversFilteredEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
		secrets  []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt domain.Event
		json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		received = append(received, r.Header.Get("X-FixNow-Event"))
		secrets = append(secrets, r.Header.Get("X-FixNow-Secret"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	log := events.NewLog(10)
	log.Record(events.Entry{Agent: domain.AgentHomeowner, Action: "before start"})
	d := newWebhookDispatcher(log, []config.WebhookConfig{{
		URL:       hook.URL,
		Audiences: []string{"contractor"},
		Secret:    "s3cret",
	}}, quietLogger())
	d.cursorFor(0)

	log.Record(events.Entry{Agent: domain.AgentHomeowner, Action: "published job", Audience: domain.AudienceHomeowner})
	log.Record(events.Entry{Agent: domain.AgentDispatcher, Action: "sent RFO", Audience: domain.AudienceBoth})
	log.Record(events.Entry{Agent: domain.AgentContractor, Action: "generated offers", Audience: domain.AudienceContractor})
	d.dispatchAll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 || received[0] != "sent RFO" || received[1] != "generated offers" {
		t.Fatalf("unexpected deliveries: %v", received)
	}
	if secrets[0] != "s3cret" {
		t.Fatalf("secret header missing")
	}
	if d.cursorFor(0) != log.LastSeq() {
		t.Fatalf("cursor not advanced")
	}
}
