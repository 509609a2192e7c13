package datastore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visadesk/visadesk/internal/applications"
)

func TestClientListSendsBearerToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/applications", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]applications.Application{
			{ID: "a1", Status: applications.StatusDraft, CreatorID: "u1", CustomerID: "c1"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "secret", time.Second)
	apps, err := client.ListApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "a1", apps[0].ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientGetMissingReturnsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	_, err := client.GetApplication(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, applications.IsNotFound(err))
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	err := client.Ping(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Equal(t, "upstream down", statusErr.Body)
}

func TestClientCreateAndUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var app applications.Application
		require.NoError(t, json.NewDecoder(r.Body).Decode(&app))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/applications", r.URL.Path)
			app.ID = "generated"
			w.WriteHeader(http.StatusCreated)
		case http.MethodPut:
			assert.Equal(t, "/applications/a1", r.URL.Path)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode(app)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	created, err := client.CreateApplication(context.Background(), applications.Application{Status: applications.StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, "generated", created.ID)

	updated, err := client.UpdateApplication(context.Background(), applications.Application{ID: "a1", Status: applications.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, applications.StatusPending, updated.Status)
}

func TestClientDeleteIsSoft(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/applications/a1", r.URL.Path)
		var body map[string]time.Time
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, at.Equal(body["deletedAt"]))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	require.NoError(t, client.DeleteApplication(context.Background(), "a1", at))
}

func TestClientListHonoursCallerContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, "", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.ListApplications(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
