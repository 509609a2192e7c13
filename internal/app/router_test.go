package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visadesk/visadesk/internal/applications"
	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/notify"
	"github.com/visadesk/visadesk/internal/observability"
	_ "github.com/visadesk/visadesk/testing"
)

type emptyStore struct{}

func (emptyStore) ListApplications(context.Context) ([]applications.Application, error) {
	return nil, nil
}

func (emptyStore) GetApplication(context.Context, string) (applications.Application, error) {
	return applications.Application{}, applications.ErrNotFound
}

func (emptyStore) CreateApplication(_ context.Context, a applications.Application) (applications.Application, error) {
	return a, nil
}

func (emptyStore) UpdateApplication(_ context.Context, a applications.Application) (applications.Application, error) {
	return a, nil
}

func (emptyStore) DeleteApplication(context.Context, string, time.Time) error { return nil }

type nopTransport struct{}

func (nopTransport) Dial(context.Context, string) (notify.Conn, error) {
	return nil, notify.ErrAuthRejected
}

func newTestRouter(t *testing.T, checks ...ReadinessCheck) (http.Handler, *authz.TokenVerifier) {
	t.Helper()
	verifier := authz.NewTokenVerifier("router-secret", "")
	mw := authz.Middleware{Verifier: verifier}
	cfg := &Config{AppRequestTimeout: time.Second, RateLimitPerMinute: 1000}
	svc := applications.NewService(emptyStore{}, applications.NewEngine(), nil, nil)
	hub := notify.NewHub(nopTransport{}, notify.ChannelOptions{})
	return NewRouter(RouterParams{
		Config:               cfg,
		Auth:                 mw,
		ApplicationsHandler:  applications.NewHandler(svc, mw, nil),
		NotificationsHandler: notify.NewHandler(hub, mw, nil),
		PermissionsHandler:   authz.NewPermissionsHandler(mw),
		Readiness:            checks,
		Metrics:              observability.NewMetrics(),
	}), verifier
}

func get(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := get(router, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRouterAPIRequiresToken(t *testing.T) {
	router, verifier := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/applications/", "").Code)

	token, err := verifier.Issue("cust-1", authz.RoleCustomer, nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(router, "/api/applications/", token).Code)
	assert.Equal(t, http.StatusOK, get(router, "/api/notifications/", token).Code)
	assert.Equal(t, http.StatusOK, get(router, "/api/me", token).Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/api/permissions", token).Code)
}

func TestRouterReadiness(t *testing.T) {
	healthy, _ := newTestRouter(t, ReadinessCheck{Name: "redis", Check: func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, get(healthy, "/readyz", "").Code)

	broken, _ := newTestRouter(t,
		ReadinessCheck{Name: "redis", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "datastore", Check: func(context.Context) error { return errors.New("refused") }},
	)
	rr := get(broken, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "datastore")
	assert.NotContains(t, rr.Body.String(), `"redis"`)
}

func TestRouterExposesMetrics(t *testing.T) {
	router, _ := newTestRouter(t)
	_ = get(router, "/healthz", "")
	rr := get(router, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "visadesk_http_requests_total")
}

func TestIsStream(t *testing.T) {
	assert.True(t, isStream(httptest.NewRequest(http.MethodGet, "/api/notifications/stream", nil)))
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/", nil)
	assert.False(t, isStream(req))
	req.Header.Set("Accept", "text/event-stream")
	assert.True(t, isStream(req))
}
