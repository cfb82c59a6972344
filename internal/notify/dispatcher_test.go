package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/config"
	"docketline/internal/domain"
)

type memSource struct {
	events []domain.Event
}

func (s *memSource) EventsAfter(_ context.Context, limit int, cursor int64) ([]domain.Event, error) {
	var out []domain.Event
	for _, e := range s.events {
		if e.ID > cursor && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memSource) LatestEventID(context.Context) (int64, error) {
	if len(s.events) == 0 {
		return 0, nil
	}
	return s.events[len(s.events)-1].ID, nil
}

func (s *memSource) add(typ, entityID, payload string) {
	s.events = append(s.events, domain.Event{
		ID:         int64(len(s.events) + 1),
		TS:         "2026-01-12T19:00:00Z",
		Type:       typ,
		EntityKind: "ordinance",
		EntityID:   entityID,
		ActorID:    "clerk",
		Payload:    payload,
	})
}

type receiver struct {
	mu       sync.Mutex
	fail     bool
	requests []*http.Request
	bodies   []envelope
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	data, _ := io.ReadAll(req.Body)
	var env envelope
	_ = json.Unmarshal(data, &env)
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, env)
	w.WriteHeader(http.StatusNoContent)
}

func TestDispatchDeliversNewEvents(t *testing.T) {
	src := &memSource{}
	src.add("item.created", "a", `{"status":"new"}`)

	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	d := New(src, []config.WebhookConfig{{URL: srv.URL, Secret: "s3cret", Events: []string{"ordinance.*"}}}, WithRate(1000, 10))
	require.NoError(t, d.Prime(context.Background()))

	src.add("ordinance.inferred", "a", `{"rule":"introduced"}`)
	src.add("item.updated", "a", `{}`)
	src.add("ordinance.updated", "a", `not json`)

	n, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, rcv.requests, 2)
	assert.Equal(t, "ordinance.inferred", rcv.requests[0].Header.Get("X-Docketline-Event"))
	assert.Equal(t, "2", rcv.requests[0].Header.Get("X-Docketline-Delivery"))
	assert.Equal(t, "s3cret", rcv.requests[0].Header.Get("X-Docketline-Secret"))
	assert.JSONEq(t, `{"rule":"introduced"}`, string(rcv.bodies[0].Payload))
	assert.Equal(t, "not json", rcv.bodies[1].PayloadRaw)

	cur, ok := d.Cursor(0)
	require.True(t, ok)
	assert.EqualValues(t, 4, cur)
}

func TestDispatchRetriesFailedEvent(t *testing.T) {
	src := &memSource{}
	rcv := &receiver{fail: true}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	d := New(src, []config.WebhookConfig{{URL: srv.URL}}, WithRate(1000, 10))
	require.NoError(t, d.Prime(context.Background()))
	src.add("meeting.updated", "7", `{}`)

	n, err := d.Dispatch(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	cur, _ := d.Cursor(0)
	assert.Zero(t, cur)

	rcv.mu.Lock()
	rcv.fail = false
	rcv.mu.Unlock()
	n, err = d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, rcv.requests[0].Header.Get("X-Docketline-Secret"))
}

func TestDispatchSkipsDisabledHooks(t *testing.T) {
	src := &memSource{}
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	off := false
	d := New(src, []config.WebhookConfig{{URL: srv.URL, Enabled: &off}, {URL: "  "}})
	src.add("item.created", "a", `{}`)
	n, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rcv.requests)
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("anything"))
	assert.True(t, newEventFilter([]string{"*"}).match("item.created"))

	f := newEventFilter([]string{"item.created", "ordinance.*"})
	assert.True(t, f.match("item.created"))
	assert.True(t, f.match("ordinance.tracking.created"))
	assert.False(t, f.match("item.updated"))
	assert.False(t, f.match("ordinances"))
}
