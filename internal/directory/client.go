// Package directory reads the public contractor directory served by the
// scraping service. Results are display data only; they never become
// offers or bookings.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafaelmaranon/FixNow/internal/config"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// ErrUnavailable is returned when the feed is down and no snapshot exists.
var ErrUnavailable = errors.New("contractor directory unavailable")

type Contractor struct {
	ID          string  `json:"id"`
	Source      string  `json:"source,omitempty"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Summary     string  `json:"summary,omitempty"`
	ServiceArea string  `json:"service_area,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	PriceRange  string  `json:"priceRange,omitempty"`
	ETA         string  `json:"eta,omitempty"`
	Distance    string  `json:"distance,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lng         float64 `json:"lng,omitempty"`
	ExternalURL string  `json:"external_url,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
}

type Neighborhood struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// Query narrows a listing. Mode is "strict" or "loose" neighborhood matching.
type Query struct {
	Limit        int
	Category     string
	Neighborhood string
	Mode         string
}

func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if strings.EqualFold(q.Category, "all") {
		q.Category = ""
	}
	if strings.EqualFold(q.Neighborhood, "all") {
		q.Neighborhood = ""
	}
	if q.Mode == "" {
		q.Mode = "strict"
	}
	return q
}

// full reports whether q asks for the unfiltered listing.
func (q Query) full() bool {
	return q.Category == "" && q.Neighborhood == ""
}

func (q Query) key() string {
	return fmt.Sprintf("%d|%s|%s|%s", q.Limit, strings.ToLower(q.Category), strings.ToLower(q.Neighborhood), q.Mode)
}

func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Neighborhood != "" {
		v.Set("neighborhood", q.Neighborhood)
	}
	v.Set("mode", q.Mode)
	return v
}

func (q Query) match(c Contractor) bool {
	if q.Category != "" && !strings.EqualFold(c.Category, q.Category) {
		return false
	}
	if q.Neighborhood != "" {
		hood := strings.ToLower(strings.ReplaceAll(q.Neighborhood, "_", " "))
		text := strings.ToLower(c.ServiceArea + " " + c.Summary)
		if !strings.Contains(text, hood) {
			return false
		}
	}
	return true
}

// Listing is a page of contractors. Stale marks a listing served from the
// snapshot because the feed could not be reached.
type Listing struct {
	Contractors []Contractor `json:"contractors"`
	Stale       bool         `json:"stale"`
	FetchedAt   time.Time    `json:"fetchedAt"`
}

// RefreshResult reports what a forced refresh fetched.
type RefreshResult struct {
	Contractors   int `json:"count"`
	Neighborhoods int `json:"neighborhoods"`
}

type cached[T any] struct {
	value T
	at    time.Time
}

// Client caches each distinct query for TTL. A nil Snapshot disables the
// offline fallback.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	TTL        time.Duration
	Snapshot   *Snapshot
	Logger     *slog.Logger
	Now        func() time.Time

	mu       sync.Mutex
	listings map[string]cached[[]Contractor]
	hoods    *cached[[]Neighborhood]
}

func New(cfg config.Directory, snap *Snapshot, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    cfg.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Timeout()},
		TTL:        cfg.CacheTTL(),
		Snapshot:   snap,
		Logger:     logger,
	}
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) fresh(at time.Time) bool {
	return c.TTL > 0 && c.now().Sub(at) < c.TTL
}

// Contractors returns a listing, from cache when fresh. When the feed
// fails it falls back to the snapshot, filtered locally.
func (c *Client) Contractors(ctx context.Context, q Query) (Listing, error) {
	q = q.normalized()
	key := q.key()
	c.mu.Lock()
	hit, ok := c.listings[key]
	c.mu.Unlock()
	if ok && c.fresh(hit.at) {
		return Listing{Contractors: hit.value, FetchedAt: hit.at}, nil
	}

	list, err := c.fetchContractors(ctx, q)
	if err != nil {
		c.Logger.Warn("directory fetch failed", "err", err)
		return c.stale(ctx, q, err)
	}
	at := c.now()
	c.storeListing(key, list, at)
	if q.full() {
		c.persistContractors(ctx, list, at)
	}
	return Listing{Contractors: list, FetchedAt: at}, nil
}

func (c *Client) stale(ctx context.Context, q Query, cause error) (Listing, error) {
	if c.Snapshot == nil {
		return Listing{}, fmt.Errorf("%w: %v", ErrUnavailable, cause)
	}
	saved, at, err := c.Snapshot.LoadContractors(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if at.IsZero() {
		return Listing{}, fmt.Errorf("%w: %v", ErrUnavailable, cause)
	}
	out := []Contractor{}
	for _, ct := range saved {
		if len(out) == q.Limit {
			break
		}
		if q.match(ct) {
			out = append(out, ct)
		}
	}
	return Listing{Contractors: out, Stale: true, FetchedAt: at}, nil
}

// Neighborhoods returns the areas the directory can filter by.
func (c *Client) Neighborhoods(ctx context.Context) ([]Neighborhood, error) {
	c.mu.Lock()
	hit := c.hoods
	c.mu.Unlock()
	if hit != nil && c.fresh(hit.at) {
		return hit.value, nil
	}
	list, err := c.fetchNeighborhoods(ctx)
	if err != nil {
		c.Logger.Warn("directory neighborhoods fetch failed", "err", err)
		if c.Snapshot != nil {
			if saved, serr := c.Snapshot.LoadNeighborhoods(ctx); serr == nil && len(saved) > 0 {
				return saved, nil
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	at := c.now()
	c.storeNeighborhoods(list, at)
	if c.Snapshot != nil {
		if err := c.Snapshot.SaveNeighborhoods(ctx, list, at); err != nil {
			c.Logger.Warn("directory snapshot write failed", "err", err)
		}
	}
	return list, nil
}

// Refresh drops the cache and fetches the full listing and the
// neighborhoods concurrently. Nothing is replaced unless both succeed.
func (c *Client) Refresh(ctx context.Context) (RefreshResult, error) {
	q := Query{}.normalized()
	var (
		list  []Contractor
		hoods []Neighborhood
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = c.fetchContractors(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		hoods, err = c.fetchNeighborhoods(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return RefreshResult{}, fmt.Errorf("refresh directory: %w", err)
	}

	at := c.now()
	c.mu.Lock()
	c.listings = nil
	c.mu.Unlock()
	c.storeListing(q.key(), list, at)
	c.storeNeighborhoods(hoods, at)
	c.persistContractors(ctx, list, at)
	if c.Snapshot != nil {
		if err := c.Snapshot.SaveNeighborhoods(ctx, hoods, at); err != nil {
			c.Logger.Warn("directory snapshot write failed", "err", err)
		}
	}
	c.Logger.Info("directory refreshed", "contractors", len(list), "neighborhoods", len(hoods))
	return RefreshResult{Contractors: len(list), Neighborhoods: len(hoods)}, nil
}

func (c *Client) storeListing(key string, list []Contractor, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listings == nil {
		c.listings = make(map[string]cached[[]Contractor])
	}
	c.listings[key] = cached[[]Contractor]{value: list, at: at}
}

func (c *Client) storeNeighborhoods(list []Neighborhood, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hoods = &cached[[]Neighborhood]{value: list, at: at}
}

func (c *Client) persistContractors(ctx context.Context, list []Contractor, at time.Time) {
	if c.Snapshot == nil {
		return
	}
	if err := c.Snapshot.SaveContractors(ctx, list, at); err != nil {
		c.Logger.Warn("directory snapshot write failed", "err", err)
	}
}

func (c *Client) fetchContractors(ctx context.Context, q Query) ([]Contractor, error) {
	var resp struct {
		Success     bool         `json:"success"`
		Contractors []Contractor `json:"contractors"`
		Error       string       `json:"error"`
	}
	if err := c.get(ctx, "contractors/sf?"+q.values().Encode(), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("directory error: %s", resp.Error)
	}
	if resp.Contractors == nil {
		resp.Contractors = []Contractor{}
	}
	return resp.Contractors, nil
}

func (c *Client) fetchNeighborhoods(ctx context.Context) ([]Neighborhood, error) {
	var resp struct {
		Neighborhoods []Neighborhood `json:"neighborhoods"`
	}
	if err := c.get(ctx, "neighborhoods", &resp); err != nil {
		return nil, err
	}
	if resp.Neighborhoods == nil {
		resp.Neighborhoods = []Neighborhood{}
	}
	return resp.Neighborhoods, nil
}

// StatusError wraps non-2xx responses from the directory.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if c.BaseURL == "" {
		return fmt.Errorf("directory base url not configured")
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
