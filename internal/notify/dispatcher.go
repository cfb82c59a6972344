// Package notify delivers activity events to configured webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"docketline/internal/config"
	"docketline/internal/domain"
)

const (
	defaultTimeout = 5 * time.Second
	defaultBatch   = 100
	defaultRate    = 5
)

// Source is the event feed a Dispatcher reads from.
type Source interface {
	EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error)
	LatestEventID(ctx context.Context) (int64, error)
}

// Dispatcher tracks one cursor per webhook. A failed delivery leaves the
// cursor on the failed event so the next run retries it.
type Dispatcher struct {
	source   Source
	webhooks []config.WebhookConfig
	client   *http.Client
	limiter  *rate.Limiter
	batch    int

	mu      sync.Mutex
	cursors map[int]int64
}

type Option func(*Dispatcher)

func WithClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithRate caps deliveries per second across all webhooks.
func WithRate(perSecond float64, burst int) Option {
	return func(d *Dispatcher) { d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func WithBatch(n int) Option {
	return func(d *Dispatcher) { d.batch = n }
}

func New(source Source, webhooks []config.WebhookConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:   source,
		webhooks: webhooks,
		client:   &http.Client{Timeout: defaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(defaultRate), defaultRate),
		batch:    defaultBatch,
		cursors:  make(map[int]int64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Prime seeds every unset cursor at the newest event so only later events
// are delivered.
func (d *Dispatcher) Prime(ctx context.Context) error {
	latest, err := d.source.LatestEventID(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.webhooks {
		if _, ok := d.cursors[i]; !ok {
			d.cursors[i] = latest
		}
	}
	return nil
}

// Dispatch runs one delivery pass over every enabled webhook and returns the
// number of events delivered. The first delivery error is returned after all
// webhooks have been attempted.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	delivered := 0
	var firstErr error
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		n, err := d.dispatchWebhook(ctx, i, hook)
		delivered += n
		if err != nil {
			zap.L().Warn("webhook delivery failed", zap.String("url", hook.URL), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return delivered, firstErr
}

func (d *Dispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) (int, error) {
	cursor, err := d.cursorFor(ctx, idx)
	if err != nil {
		return 0, err
	}
	evts, err := d.source.EventsAfter(ctx, d.batch, cursor)
	if err != nil {
		return 0, eris.Wrap(err, "notify: fetch events")
	}
	filter := newEventFilter(hook.Events)
	delivered := 0
	for _, evt := range evts {
		if !filter.match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return delivered, eris.Wrap(err, "notify: rate limit")
		}
		if err := d.post(ctx, hook, evt); err != nil {
			return delivered, eris.Wrapf(err, "notify: deliver event %d to %s", evt.ID, hook.URL)
		}
		d.setCursor(idx, evt.ID)
		delivered++
		zap.L().Debug("webhook delivered", zap.String("url", hook.URL), zap.Int64("event_id", evt.ID), zap.String("type", evt.Type))
	}
	return delivered, nil
}

func (d *Dispatcher) cursorFor(ctx context.Context, idx int) (int64, error) {
	d.mu.Lock()
	cur, ok := d.cursors[idx]
	d.mu.Unlock()
	if ok {
		return cur, nil
	}
	latest, err := d.source.LatestEventID(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "notify: init cursor")
	}
	d.setCursor(idx, latest)
	return latest, nil
}

func (d *Dispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

// Cursor returns the last event handled for webhook idx.
func (d *Dispatcher) Cursor(idx int) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.cursors[idx]
	return cur, ok
}

type envelope struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func (d *Dispatcher) post(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage("{}")
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage(evt.Payload)
		} else {
			raw = evt.Payload
		}
	}
	data, err := json.Marshal(envelope{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
		PayloadRaw: raw,
	})
	if err != nil {
		return eris.Wrap(err, "marshal envelope")
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		timeout := time.Duration(hook.TimeoutSeconds) * time.Second
		if timeout != client.Timeout {
			c := *client
			c.Timeout = timeout
			client = &c
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Docketline-Event", evt.Type)
	req.Header.Set("X-Docketline-Delivery", strconv.FormatInt(evt.ID, 10))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Docketline-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "post")
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return eris.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// eventFilter matches exact types and "prefix.*" patterns. An empty list matches everything.
type eventFilter struct {
	all      bool
	set      map[string]struct{}
	prefixes []string
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	var prefixes []string
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		switch {
		case key == "":
		case key == "*":
			return eventFilter{all: true}
		case strings.HasSuffix(key, ".*"):
			prefixes = append(prefixes, strings.TrimSuffix(key, "*"))
		default:
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 && len(prefixes) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set, prefixes: prefixes}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	if _, ok := f.set[evt]; ok {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(evt, p) {
			return true
		}
	}
	return false
}
