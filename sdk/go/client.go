// Package fixnowsdk is a small client for the FixNow HTTP API.
package fixnowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal FixNow HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. BaseURL includes the API
// base path, e.g. http://127.0.0.1:3001/api.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Job represents the API job model (partial).
type Job struct {
	ID                 string  `json:"id"`
	Category           string  `json:"category"`
	Address            string  `json:"address"`
	Price              float64 `json:"price"`
	Urgency            string  `json:"urgency"`
	Description        string  `json:"description"`
	CustomerName       string  `json:"customerName"`
	Phone              string  `json:"phone"`
	Status             string  `json:"status"`
	HoldUntil          string  `json:"holdUntil,omitempty"`
	AssignedContractor string  `json:"assignedContractor,omitempty"`
	BookingID          string  `json:"bookingId,omitempty"`
	CreatedAt          string  `json:"createdAt"`
}

// NewJob is the payload of CreateJob.
type NewJob struct {
	Category     string  `json:"category,omitempty"`
	Address      string  `json:"address"`
	Description  string  `json:"description"`
	CustomerName string  `json:"customerName"`
	Phone        string  `json:"phone"`
	Urgency      string  `json:"urgency,omitempty"`
	Price        float64 `json:"price,omitempty"`
}

type Draft struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Category    string   `json:"category"`
	Urgency     string   `json:"urgency"`
	BudgetHint  *float64 `json:"budget_hint,omitempty"`
	Description string   `json:"description"`
	Attachments []string `json:"attachments"`
}

type Offer struct {
	ID             string  `json:"id"`
	JobID          string  `json:"jobId"`
	ContractorID   string  `json:"contractorId"`
	ContractorName string  `json:"contractorName"`
	Price          float64 `json:"price"`
	ETA            string  `json:"eta"`
	Rating         float64 `json:"rating"`
	Type           string  `json:"type"`
}

type Booking struct {
	ID             string  `json:"id"`
	JobID          string  `json:"jobId"`
	ContractorID   string  `json:"contractorId"`
	ContractorName string  `json:"contractorName"`
	Price          float64 `json:"price"`
	ETAMin         int     `json:"etaMin"`
	ArrivalBy      string  `json:"arrivalByIso"`
	WindowMin      int     `json:"windowMin"`
	Phone          string  `json:"phone"`
	Status         string  `json:"status"`
}

// Acceptance is returned by AcceptOffer.
type Acceptance struct {
	Message string  `json:"message"`
	Job     Job     `json:"job"`
	Offer   Offer   `json:"offer"`
	Booking Booking `json:"booking"`
}

// Event represents a feed entry.
type Event struct {
	ID                string         `json:"id"`
	Timestamp         string         `json:"timestamp"`
	Agent             string         `json:"agent"`
	Action            string         `json:"action"`
	JobID             string         `json:"jobId,omitempty"`
	Details           map[string]any `json:"details"`
	Audience          string         `json:"audience"`
	ContractorID      string         `json:"contractorId,omitempty"`
	Message           string         `json:"message"`
	ConversationStyle bool           `json:"conversationStyle"`
}

type Location struct {
	Address      string  `json:"address,omitempty"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Neighborhood string  `json:"neighborhood,omitempty"`
}

type Availability struct {
	ContractorID string   `json:"contractorId"`
	Location     Location `json:"location"`
	Skills       []string `json:"skills"`
	BudgetMax    float64  `json:"budgetMax,omitempty"`
	RadiusMeters int      `json:"radiusMeters"`
	Until        string   `json:"untilIso"`
	Notes        string   `json:"notes,omitempty"`
}

// AvailabilityInput is the payload of SetAvailability. Zero values take
// the server defaults.
type AvailabilityInput struct {
	Location        *Location `json:"location,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	BudgetMax       float64   `json:"budgetMax,omitempty"`
	RadiusMeters    int       `json:"radiusMeters,omitempty"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

type Reply struct {
	ContractorID   string  `json:"contractorId"`
	ContractorName string  `json:"contractorName"`
	Type           string  `json:"type"`
	ETAMinutes     int     `json:"etaMinutes,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Message        string  `json:"message"`
}

type DispatchResult struct {
	Contacted int     `json:"contacted"`
	Replies   []Reply `json:"replies"`
	Summary   struct {
		Accepted  int `json:"accepted"`
		Countered int `json:"countered"`
		Declined  int `json:"declined"`
	} `json:"summary"`
}

// Contractor is a directory listing entry (partial).
type Contractor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	ServiceArea string  `json:"service_area"`
	Rating      float64 `json:"rating"`
	PriceRange  string  `json:"priceRange"`
	ETA         string  `json:"eta"`
}

// ContractorListing wraps the directory response.
type ContractorListing struct {
	Contractors []Contractor `json:"contractors"`
	Count       int          `json:"count"`
	Stale       bool         `json:"stale"`
	FetchedAt   string       `json:"fetchedAt"`
}

// APIError wraps non-2xx responses. Err and Message come from the
// error envelope when the body carries one.
type APIError struct {
	StatusCode int
	Err        string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Err != "" {
		return fmt.Sprintf("api error: status=%d error=%s", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Health reports the number of stored jobs.
func (c *Client) Health(ctx context.Context) (int, error) {
	var resp struct {
		JobsCount int `json:"jobsCount"`
	}
	err := c.do(ctx, http.MethodGet, "health", nil, &resp)
	return resp.JobsCount, err
}

// CreateJob creates a job and starts its offer round.
func (c *Client) CreateJob(ctx context.Context, in NewJob) (Job, error) {
	var resp struct {
		Data Job `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, "jobs", in, &resp)
	return resp.Data, err
}

func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var resp struct {
		Data []Job `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "jobs", nil, &resp)
	return resp.Data, err
}

func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var resp struct {
		Data Job `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "jobs/"+url.PathEscape(id), nil, &resp)
	return resp.Data, err
}

// HoldJob holds a job and returns the hold deadline.
func (c *Client) HoldJob(ctx context.Context, jobID string, minutes int) (string, error) {
	body := map[string]any{
		"jobId":   jobID,
		"minutes": minutes,
	}
	var resp struct {
		HoldUntil string `json:"holdUntil"`
	}
	err := c.do(ctx, http.MethodPost, "hold", body, &resp)
	return resp.HoldUntil, err
}

func (c *Client) Dispatch(ctx context.Context, strategy string, limit int) (DispatchResult, error) {
	body := map[string]any{
		"strategy": strategy,
		"limit":    limit,
	}
	var resp DispatchResult
	err := c.do(ctx, http.MethodPost, "dispatch", body, &resp)
	return resp, err
}

func (c *Client) CreateDraft(ctx context.Context, userInput, category string) (Draft, error) {
	body := map[string]any{
		"userInput": userInput,
		"category":  category,
	}
	var resp struct {
		Draft Draft `json:"draft"`
	}
	err := c.do(ctx, http.MethodPost, "drafts", body, &resp)
	return resp.Draft, err
}

// PatchDraft merges fields into a draft. Unknown keys are ignored.
func (c *Client) PatchDraft(ctx context.Context, id string, fields map[string]any) (Draft, error) {
	var resp struct {
		Draft Draft `json:"draft"`
	}
	err := c.do(ctx, http.MethodPatch, "drafts/"+url.PathEscape(id), fields, &resp)
	return resp.Draft, err
}

func (c *Client) PublishDraft(ctx context.Context, id string) (Job, error) {
	var resp struct {
		Job Job `json:"job"`
	}
	err := c.do(ctx, http.MethodPost, "drafts/"+url.PathEscape(id)+"/publish", nil, &resp)
	return resp.Job, err
}

func (c *Client) Offers(ctx context.Context, jobID string) ([]Offer, error) {
	var resp struct {
		Offers []Offer `json:"offers"`
	}
	err := c.do(ctx, http.MethodGet, "jobs/"+url.PathEscape(jobID)+"/offers", nil, &resp)
	return resp.Offers, err
}

func (c *Client) AcceptOffer(ctx context.Context, offerID string) (Acceptance, error) {
	var resp Acceptance
	err := c.do(ctx, http.MethodPost, "offers/"+url.PathEscape(offerID)+"/accept", nil, &resp)
	return resp, err
}

// Events returns recent events, newest first. An empty audience lists all.
func (c *Client) Events(ctx context.Context, limit int, audience string) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if audience != "" {
		q.Set("audience", audience)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

func (c *Client) ContractorFeed(ctx context.Context, contractorID string, limit int) ([]Event, error) {
	endpoint := "contractor/" + url.PathEscape(contractorID) + "/feed"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

func (c *Client) SetAvailability(ctx context.Context, contractorID string, in AvailabilityInput) (Availability, error) {
	var resp struct {
		Availability Availability `json:"availability"`
	}
	err := c.do(ctx, http.MethodPut, availabilityPath(contractorID), in, &resp)
	return resp.Availability, err
}

// GetAvailability returns nil when the contractor has no live window.
func (c *Client) GetAvailability(ctx context.Context, contractorID string) (*Availability, error) {
	var resp struct {
		Availability *Availability `json:"availability"`
	}
	err := c.do(ctx, http.MethodGet, availabilityPath(contractorID), nil, &resp)
	return resp.Availability, err
}

func (c *Client) ClearAvailability(ctx context.Context, contractorID string) error {
	return c.do(ctx, http.MethodDelete, availabilityPath(contractorID), nil, nil)
}

func (c *Client) ListAvailability(ctx context.Context, skill string) ([]Availability, error) {
	endpoint := "availability"
	if skill != "" {
		endpoint += "?skill=" + url.QueryEscape(skill)
	}
	var resp struct {
		Availability []Availability `json:"availability"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Availability, err
}

// Contractors browses the public directory.
func (c *Client) Contractors(ctx context.Context, category, neighborhood string, limit int) (ContractorListing, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if neighborhood != "" {
		q.Set("neighborhood", neighborhood)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := "contractors"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp ContractorListing
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RefreshContractors forces a directory refresh and returns the counts.
func (c *Client) RefreshContractors(ctx context.Context) (contractors, neighborhoods int, err error) {
	var resp struct {
		Count         int `json:"count"`
		Neighborhoods int `json:"neighborhoods"`
	}
	err = c.do(ctx, http.MethodPost, "contractors/refresh", nil, &resp)
	return resp.Count, resp.Neighborhoods, err
}

func availabilityPath(contractorID string) string {
	return "contractor/" + url.PathEscape(contractorID) + "/availability"
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Err = envelope.Error
			apiErr.Message = envelope.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
