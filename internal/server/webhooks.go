package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/events"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

type webhookDispatcher struct {
	log      *events.Log
	webhooks []config.WebhookConfig
	client   *http.Client
	logger   *slog.Logger
	mu       sync.Mutex
	cursors  map[int]uint64
}

func newWebhookDispatcher(log *events.Log, hooks []config.WebhookConfig, logger *slog.Logger) *webhookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &webhookDispatcher{
		log:      log,
		webhooks: hooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		logger:   logger,
		cursors:  make(map[int]uint64),
	}
}

// StartWebhooks delivers newly recorded events to the configured hooks
// until ctx is done. Events recorded before the call are not sent.
func StartWebhooks(ctx context.Context, log *events.Log, hooks []config.WebhookConfig, logger *slog.Logger) {
	if log == nil || len(hooks) == 0 {
		return
	}
	d := newWebhookDispatcher(log, hooks, logger)
	for i := range hooks {
		d.cursorFor(i)
	}
	go d.run(ctx)
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	batch := d.log.Since(d.cursorFor(idx), defaultWebhookBatch)
	if len(batch) == 0 {
		return
	}
	filter := newAudienceFilter(hook.Audiences)
	for _, evt := range batch {
		if !filter.match(evt) {
			d.setCursor(idx, evt.Seq)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			d.logger.Warn("webhook delivery failed", "url", hook.URL, "event", evt.ID, "err", err)
			return
		}
		d.setCursor(idx, evt.Seq)
	}
}

func (d *webhookDispatcher) cursorFor(idx int) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur := d.log.LastSeq()
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value uint64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

func (d *webhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-FixNow-Event", evt.Action)
	req.Header.Set("X-FixNow-Delivery", evt.ID)
	req.Header.Set("X-FixNow-Audience", string(evt.Audience))
	if evt.JobID != "" {
		req.Header.Set("X-FixNow-Job", evt.JobID)
	}
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-FixNow-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

// audienceFilter passes events addressed to a listed audience. Events
// for both audiences pass any non-empty filter.
type audienceFilter struct {
	all bool
	set map[domain.Audience]struct{}
}

func newAudienceFilter(audiences []string) audienceFilter {
	set := make(map[domain.Audience]struct{}, len(audiences))
	for _, a := range audiences {
		key := strings.ToLower(strings.TrimSpace(a))
		if key == "" {
			continue
		}
		set[domain.Audience(key)] = struct{}{}
	}
	if len(set) == 0 {
		return audienceFilter{all: true}
	}
	return audienceFilter{set: set}
}

func (f audienceFilter) match(evt domain.Event) bool {
	if f.all || evt.Audience == domain.AudienceBoth {
		return true
	}
	_, ok := f.set[evt.Audience]
	return ok
}
