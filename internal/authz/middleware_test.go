package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visadesk/visadesk/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *TokenVerifier) {
	t.Helper()
	v := NewTokenVerifier("secret", "")
	mw := Middleware{Verifier: v}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.With(mw.RequireAny(shared.PermApplicationsDelete, shared.PermApplicationsEdit)).
		Get("/any", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.With(mw.RequireAll(shared.PermApplicationsView, shared.PermApplicationsDelete)).
		Get("/all", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	NewPermissionsHandler(mw).MountRoutes(r)
	return r, v
}

func doRequest(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMiddlewareAuthorization(t *testing.T) {
	h, v := newTestRouter(t)

	staff, err := v.Issue("s1", RoleStaff, nil, time.Hour)
	require.NoError(t, err)
	admin, err := v.Issue("a1", RoleAdmin, nil, time.Hour)
	require.NoError(t, err)
	customer, err := v.Issue("c1", RoleCustomer, nil, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, h, "/any", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, h, "/any", "garbage").Code)
	assert.Equal(t, http.StatusNoContent, doRequest(t, h, "/any", staff).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(t, h, "/all", staff).Code)
	assert.Equal(t, http.StatusNoContent, doRequest(t, h, "/all", admin).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(t, h, "/any", customer).Code)
}

func TestMiddlewareQueryToken(t *testing.T) {
	h, v := newTestRouter(t)
	admin, err := v.Issue("a1", RoleAdmin, nil, time.Hour)
	require.NoError(t, err)

	rr := doRequest(t, h, "/any?token="+admin, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestPermissionsHandler(t *testing.T) {
	h, v := newTestRouter(t)
	agent, err := v.Issue("ag1", RoleAgent, nil, time.Hour)
	require.NoError(t, err)

	rr := doRequest(t, h, "/me", agent)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"applications.create":true`)
	assert.Contains(t, rr.Body.String(), `"applications.transition":false`)

	assert.Equal(t, http.StatusForbidden, doRequest(t, h, "/permissions", agent).Code)

	admin, err := v.Issue("a1", RoleAdmin, nil, time.Hour)
	require.NoError(t, err)
	rr = doRequest(t, h, "/permissions", admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"roleDefaults"`)
}
