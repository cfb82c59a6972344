package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/config"
	"docketline/internal/db"
	"docketline/internal/domain"
	"docketline/internal/engine"
	"docketline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	e := engine.New(conn, config.Default("Springfield"))
	e.Now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	_, err = e.EnsureCalendar(context.Background(), "tester")
	require.NoError(t, err)

	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String(), Engine: e, client: &http.Client{}}
}

func doJSON(t *testing.T, s *testServer, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

func createOrdinance(t *testing.T, s *testServer, subject string) domain.DocketItem {
	t.Helper()
	resp, data := doJSON(t, s, http.MethodPost, "/v0/items", map[string]any{
		"subject":     subject,
		"item_type":   "ordinance_new",
		"attachments": []string{"O.7-2026 draft.pdf"},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	return decode[domain.DocketItem](t, data)
}

func placeOnAgenda(t *testing.T, s *testServer, id, date string) {
	t.Helper()
	resp, data := doJSON(t, s, http.MethodPatch, "/v0/items/"+id, map[string]any{"status": "reviewed"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	resp, data = doJSON(t, s, http.MethodPatch, "/v0/items/"+id, map[string]any{"status": "accepted", "target_meeting_date": date}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
}

func TestHealthAndOpenAPI(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	resp, data := doJSON(t, s, http.MethodGet, "/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[HealthResponse](t, data)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "Springfield", health.Municipality)
	assert.Equal(t, "2026-01-01", health.Today)
	assert.Positive(t, health.SchemaVersion)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "/v0/ordinances/{docket_id}")

	resp, data = doJSON(t, s, http.MethodGet, "/docs", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Docketline API Docs")
}

func TestOrdinanceLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	d := createOrdinance(t, s, "Parking limits")
	assert.Equal(t, "new", d.Status)

	placeOnAgenda(t, s, d.ID, "2026-01-12")

	resp, data := doJSON(t, s, http.MethodGet, "/v0/ordinances/"+d.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	v := decode[engine.OrdinanceView](t, data)
	require.NotNil(t, v.Tracking.OrdinanceNumber)
	assert.Equal(t, "O.7-2026", *v.Tracking.OrdinanceNumber)
	require.NotNil(t, v.Tracking.HearingDate)
	assert.Equal(t, "2026-01-28", *v.Tracking.HearingDate)
	assert.Equal(t, "Parking limits", v.Subject)

	resp, data = doJSON(t, s, http.MethodPatch, "/v0/ordinances/"+d.ID, map[string]any{
		"set": map[string]any{"adoption_date": "2026-02-11", "adoption_vote": "5-0", "hearing_amended": false},
	}, map[string]string{"X-Actor-Id": "deputy"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	v = decode[engine.OrdinanceView](t, data)
	require.NotNil(t, v.Tracking.EffectiveDate)
	assert.Equal(t, "2026-03-03", *v.Tracking.EffectiveDate)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/ordinances/"+d.ID+"/history?field=adoption_date", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decode[HistoryListResponse](t, data)
	require.Len(t, hist.Items, 1)
	assert.Equal(t, "deputy", hist.Items[0].ActorID)

	resp, data = doJSON(t, s, http.MethodPatch, "/v0/ordinances/"+d.ID, map[string]any{
		"set": map[string]any{"effective_date": nil},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	v = decode[engine.OrdinanceView](t, data)
	assert.Nil(t, v.Tracking.EffectiveDate)

	resp, data = doJSON(t, s, http.MethodPost, "/v0/ordinances/"+d.ID+"/history/effective_date/revert", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	res := decode[engine.RevertResult](t, data)
	require.NotNil(t, res.Value)
	assert.Equal(t, "2026-03-03", *res.Value)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/ordinances?stage=adopted", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[OrdinanceListResponse](t, data)
	require.Len(t, list.Items, 1)
	assert.Equal(t, d.ID, list.Items[0].Tracking.DocketID)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	d := createOrdinance(t, s, "Tree ordinance")

	resp, data := doJSON(t, s, http.MethodPatch, "/v0/items/"+d.ID, map[string]any{"status": "accepted"}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", decode[errorEnvelope](t, data).Error.Code)

	resp, data = doJSON(t, s, http.MethodPatch, "/v0/ordinances/"+d.ID, map[string]any{
		"set": map[string]any{"mayor_signature": "2026-02-01"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown_field", decode[errorEnvelope](t, data).Error.Code)

	resp, data = doJSON(t, s, http.MethodPatch, "/v0/ordinances/"+d.ID, map[string]any{
		"set": map[string]any{"hearing_date": "Jan 28"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_value", decode[errorEnvelope](t, data).Error.Code)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/items/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode[errorEnvelope](t, data).Error.Code)

	resp, _ = doJSON(t, s, http.MethodGet, "/v0/events?cursor=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestItemPatchNullClears(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	d := createOrdinance(t, s, "Noise limits")

	resp, data := doJSON(t, s, http.MethodPatch, "/v0/items/"+d.ID, map[string]any{"summary_override": "Amends chapter 12."}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	got := decode[domain.DocketItem](t, data)
	require.NotNil(t, got.SummaryOverride)

	resp, data = doJSON(t, s, http.MethodPatch, "/v0/items/"+d.ID, map[string]any{"summary_override": nil}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	got = decode[domain.DocketItem](t, data)
	assert.Nil(t, got.SummaryOverride)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/items/"+d.ID+"/history", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[HistoryListResponse](t, data).Items, 2)
}

func TestMeetingsAndAgenda(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	d := createOrdinance(t, s, "Sidewalk repair")
	placeOnAgenda(t, s, d.ID, "2026-01-12")

	resp, data := doJSON(t, s, http.MethodGet, "/v0/meetings?type=regular&from=2026-02-01&to=2026-02-28", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	meetings := decode[MeetingListResponse](t, data)
	require.Len(t, meetings.Items, 2)
	assert.Equal(t, "2026-02-11", meetings.Items[0].Date)
	assert.Equal(t, domain.RoleHearing, meetings.Items[0].Role)

	resp, _ = doJSON(t, s, http.MethodGet, "/v0/meetings?from=02-01-2026", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/meetings/next?type=work_session", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	next := decode[domain.Meeting](t, data)
	assert.Equal(t, "2026-01-12", next.Date)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/meetings/"+strconv.FormatInt(next.ID, 10)+"/agenda", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	agenda := decode[AgendaResponse](t, data)
	require.Len(t, agenda.Items, 1)
	assert.Equal(t, d.ID, agenda.Items[0].ID)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/agenda?date=2026-01-12", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[AgendaResponse](t, data).Items, 1)

	resp, data = doJSON(t, s, http.MethodPatch, "/v0/meetings/"+strconv.FormatInt(next.ID, 10), map[string]any{
		"status":    "completed",
		"video_url": "https://video.example.org/ws-0112",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	m := decode[domain.Meeting](t, data)
	assert.Equal(t, domain.MeetingCompleted, m.Status)

	resp, data = doJSON(t, s, http.MethodPatch, "/v0/meetings/"+strconv.FormatInt(next.ID, 10), map[string]any{"status": "upcoming"}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", decode[errorEnvelope](t, data).Error.Code)

	resp, data = doJSON(t, s, http.MethodPost, "/v0/calendar/ensure", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	ensured := decode[CalendarEnsureResponse](t, data)
	assert.Zero(t, ensured.Created)
	assert.Equal(t, len(s.Engine.Config.Schedule), ensured.Meetings)
}

func TestEventsPagination(t *testing.T) {
	s := newTestServer(t, AuthConfig{})
	d := createOrdinance(t, s, "Leaf collection")
	placeOnAgenda(t, s, d.ID, "2026-01-12")

	resp, data := doJSON(t, s, http.MethodGet, "/v0/events?entity_kind=item&limit=2", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	first := decode[paginatedEvents](t, data)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, "item.updated", first.Items[0].Type)

	resp, data = doJSON(t, s, http.MethodGet, "/v0/events?entity_kind=item&limit=2&cursor="+first.NextCursor, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	second := decode[paginatedEvents](t, data)
	require.NotEmpty(t, second.Items)
	assert.Less(t, second.Items[0].ID, first.Items[1].ID)
	assert.Equal(t, "item.created", second.Items[len(second.Items)-1].Type)
	assert.Equal(t, d.ID, second.Items[len(second.Items)-1].EntityID)
}

func TestJWTAuth(t *testing.T) {
	secret := "test-secret"
	s := newTestServer(t, AuthConfig{JWTSecret: secret})

	resp, _ := doJSON(t, s, http.MethodGet, "/v0/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := doJSON(t, s, http.MethodGet, "/v0/meetings", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", decode[errorEnvelope](t, data).Error.Code)

	resp, _ = doJSON(t, s, http.MethodGet, "/v0/meetings", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "clerk-anne",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + token}

	resp, data = doJSON(t, s, http.MethodPost, "/v0/items", map[string]any{"subject": "Budget transfer", "item_type": "resolution"}, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	d := decode[domain.DocketItem](t, data)

	resp, _ = doJSON(t, s, http.MethodPatch, "/v0/items/"+d.ID, map[string]any{"status": "reviewed"}, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, data = doJSON(t, s, http.MethodGet, "/v0/items/"+d.ID+"/history?field=status", nil, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decode[HistoryListResponse](t, data)
	require.Len(t, hist.Items, 1)
	assert.Equal(t, "clerk-anne", hist.Items[0].ActorID)
}
