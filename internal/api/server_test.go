package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/flock/config"
	"github.com/tazhate/flock/internal/blob"
	"github.com/tazhate/flock/internal/clients/caldav"
	"github.com/tazhate/flock/internal/metrics"
	"github.com/tazhate/flock/internal/service"
	"github.com/tazhate/flock/internal/storage"
)

const testSecret = "test-secret"

const connectYAML = `
form_type: connect
title: Connect Card
target_table: members
fields:
  - key: name
    column: full_name
  - key: email
    column: email
  - key: comments
    label: Comments
    notes: true
    notes_format: "{label}: {value}"
rules:
  - type: conditional_save
    priority: 1
    config: {lookupField: email, mergeStrategy: merge}
`

type testServer struct {
	*httptest.Server
	store *storage.Storage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, filepath.Join(t.TempDir(), "flock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Timezone:  time.UTC,
		Auth:      config.AuthConfig{JWTSecret: testSecret, Issuer: "https://auth.example.com"},
		Scheduler: config.SchedulerConfig{HorizonDays: 90},
	}
	m := metrics.New()
	svc := Services{
		Members:    service.NewMemberService(store),
		Tasks:      service.NewTaskService(store),
		Rota:       service.NewRotaService(store),
		Messages:   service.NewMessageService(store),
		Generation: service.NewGenerationService(store, m),
		Forms:      service.NewFormService(store, blob.NewMemory(), m),
		Calendar:   service.NewCalendarService(store, caldav.NewClient("", "", "", ""), time.UTC),
	}
	srv := NewServer(cfg, store, svc, m)
	srv.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: store}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	claims := &Claims{
		Email: subject + "@example.com",
		Name:  subject,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "https://auth.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type apiResult struct {
	status int
	body   APIResponse
	raw    string
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) apiResult {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, reader)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	res := apiResult{status: resp.StatusCode, raw: string(data)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &res.body))
	}
	return res
}

func (r apiResult) data(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(r.body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	res := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.True(t, res.body.Success)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodGet, "/api/members", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.False(t, res.body.Success)

	res = ts.do(t, http.MethodGet, "/api/members", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "mallory", Issuer: "https://auth.example.com"},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	res = ts.do(t, http.MethodGet, "/api/members", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "eve", Issuer: "https://elsewhere.example.com"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	res = ts.do(t, http.MethodGet, "/api/members", wrongIssuer, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = ts.do(t, http.MethodGet, "/api/members", token(t, "visitor", "member"), nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = ts.do(t, http.MethodGet, "/api/me", token(t, "leader1", "leader"), nil)
	require.Equal(t, http.StatusOK, res.status)
	var me struct {
		AuthUID string `json:"auth_uid"`
		Role    string `json:"role"`
	}
	res.data(t, &me)
	assert.Equal(t, "leader1", me.AuthUID)
	assert.Equal(t, "leader", me.Role)
}

func TestMembers(t *testing.T) {
	ts := newTestServer(t)
	leader := token(t, "leader1", "leader")

	res := ts.do(t, http.MethodPost, "/api/members", leader, map[string]any{
		"first_name": "Jane",
		"surname":    "Doe",
		"email":      "jane@example.com",
		"interests":  []string{"music", "youth"},
	})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	var created struct {
		ID        int64    `json:"id"`
		FullName  string   `json:"full_name"`
		Status    string   `json:"status"`
		Interests []string `json:"interests"`
	}
	res.data(t, &created)
	assert.Equal(t, "Jane Doe", created.FullName)
	assert.Equal(t, "New", created.Status)
	assert.Equal(t, []string{"music", "youth"}, created.Interests)

	res = ts.do(t, http.MethodPut, "/api/members/1/status", leader, map[string]string{"status": "Visiting"})
	assert.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, http.MethodGet, "/api/members?status=Visiting", leader, nil)
	require.Equal(t, http.StatusOK, res.status)
	var list []map[string]any
	res.data(t, &list)
	assert.Len(t, list, 1)

	res = ts.do(t, http.MethodGet, "/api/members/999", leader, nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.do(t, http.MethodPost, "/api/members", leader, map[string]any{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, http.MethodPost, "/api/members", leader, "{not json")
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestTasks_OnlyCreatorOrAdminModifies(t *testing.T) {
	ts := newTestServer(t)
	alice := token(t, "alice", "leader")
	bob := token(t, "bob", "leader")
	admin := token(t, "pastor", "admin")

	res := ts.do(t, http.MethodPost, "/api/tasks", alice, map[string]any{"title": "Order chairs", "priority": "week", "due_date": "2024-01-10"})
	require.Equal(t, http.StatusCreated, res.status, res.raw)

	res = ts.do(t, http.MethodPost, "/api/tasks/1/done", bob, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = ts.do(t, http.MethodPost, "/api/tasks/1/done", admin, nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, http.MethodPost, "/api/tasks", alice, map[string]any{"title": "Bad", "due_date": "10/01/2024"})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestForms_ImportAndSubmit(t *testing.T) {
	ts := newTestServer(t)
	admin := token(t, "pastor", "admin")

	res := ts.do(t, http.MethodPost, "/api/forms/configs", token(t, "leader1", "leader"), connectYAML)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = ts.do(t, http.MethodPost, "/api/forms/configs", admin, connectYAML)
	require.Equal(t, http.StatusCreated, res.status, res.raw)

	res = ts.do(t, http.MethodGet, "/api/forms/connect", "", nil)
	require.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, http.MethodPost, "/api/forms/connect/submit", "", map[string]any{
		"name": "Jane Doe", "email": "jane@example.com", "comments": "first visit",
	})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	var first service.SubmitResult
	res.data(t, &first)
	assert.Equal(t, service.SubmissionCreated, first.Status)

	res = ts.do(t, http.MethodPost, "/api/forms/connect/submit", "", map[string]any{
		"email": "jane@example.com", "comments": "second visit",
	})
	require.Equal(t, http.StatusOK, res.status, res.raw)
	var second service.SubmitResult
	res.data(t, &second)
	assert.Equal(t, service.SubmissionUpdated, second.Status)
	assert.Equal(t, first.RecordID, second.RecordID)

	res = ts.do(t, http.MethodPost, "/api/forms/connect/submit", "", map[string]any{"name": "No Email"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, http.MethodPost, "/api/forms/unknown/submit", "", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.do(t, http.MethodPost, "/api/forms/configs", admin, "form_type: bad\ntarget_table: nowhere\n")
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, http.MethodGet, "/api/submissions?form_type=connect", admin, nil)
	require.Equal(t, http.StatusOK, res.status)
	var archived []blob.Info
	res.data(t, &archived)
	require.Len(t, archived, 2)

	res = ts.do(t, http.MethodGet, "/api/submissions/object?key="+archived[0].Key, admin, nil)
	assert.Equal(t, http.StatusOK, res.status)
}

func TestPatterns_PreviewAndGenerate(t *testing.T) {
	ts := newTestServer(t)
	leader := token(t, "leader1", "leader")
	admin := token(t, "pastor", "admin")

	res := ts.do(t, http.MethodPost, "/api/templates", leader, map[string]any{"name": "Sunday Service", "default_time": "10:30"})
	require.Equal(t, http.StatusCreated, res.status, res.raw)

	res = ts.do(t, http.MethodPost, "/api/patterns", leader, map[string]any{
		"template_id": 1, "type": "monthly", "day_of_week": 0, "week_of_month": 2, "start_date": "2024-01-01",
	})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	var pattern PatternResponse
	res.data(t, &pattern)
	assert.Equal(t, "2nd Sunday of the month", pattern.Description)

	res = ts.do(t, http.MethodGet, "/api/patterns/1/preview?from=2024-01-01&to=2024-03-31", leader, nil)
	require.Equal(t, http.StatusOK, res.status)
	var preview service.PatternPreview
	res.data(t, &preview)
	assert.Equal(t, []string{"2024-01-14", "2024-02-11", "2024-03-10"}, preview.Dates)

	res = ts.do(t, http.MethodPost, "/api/patterns/1/generate?from=2024-01-01&to=2024-03-31", leader, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = ts.do(t, http.MethodPost, "/api/patterns/1/generate?from=2024-01-01&to=2024-03-31", admin, nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	var gen service.GenerationResult
	res.data(t, &gen)
	assert.Len(t, gen.Created, 3)

	res = ts.do(t, http.MethodGet, "/api/services?from=2024-01-01&to=2024-03-31", leader, nil)
	require.Equal(t, http.StatusOK, res.status)
	var services []map[string]any
	res.data(t, &services)
	assert.Len(t, services, 3)

	res = ts.do(t, http.MethodGet, "/api/services.ics?from=2024-01-01&to=2024-03-31", leader, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, 3, strings.Count(res.raw, "BEGIN:VEVENT"))

	res = ts.do(t, http.MethodPost, "/api/patterns/42/generate", admin, nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.do(t, http.MethodGet, "/api/services?from=2024-03-01&to=2024-01-01", leader, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, http.MethodPost, "/api/patterns/preview?from=2024-01-01&to=2024-01-31", leader, map[string]any{
		"type": "biWeekly", "day_of_week": 0, "start_date": "2024-01-01",
	})
	require.Equal(t, http.StatusOK, res.status, res.raw)
	res.data(t, &preview)
	assert.Equal(t, []string{"2024-01-07", "2024-01-21"}, preview.Dates)

	res = ts.do(t, http.MethodPost, "/api/patterns/preview", leader, map[string]any{"type": "monthly", "day_of_week": 0, "start_date": "2024-01-01"})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestMetricsUseRouteTemplates(t *testing.T) {
	ts := newTestServer(t)
	leader := token(t, "leader1", "leader")
	ts.do(t, http.MethodGet, "/api/members/7", leader, nil)

	res := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.raw, `flock_http_requests_total{code="404",method="GET",route="/api/members/{id:[0-9]+}"} 1`)
}
