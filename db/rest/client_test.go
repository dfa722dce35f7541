package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "tracker/db/db"
	"tracker/segment"
)

func TestClientFetch(t *testing.T) {
	stored := dbt.Snapshot{UpdatedAt: "2025-10-27T10:00:00Z", Segments: []segment.Segment{{ID: "a", TeamID: "A", LegNo: 1}}}
	empty := true

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathSnapshot, r.URL.Path)
		assert.Equal(t, "team-a", r.URL.Query().Get("scope"))
		if empty {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(stored)
	}))
	defer server.Close()

	client := New(server.URL+"/", "team-a", time.Second)

	snapshot, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	empty = false
	snapshot, err = client.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, stored, *snapshot)
}

func TestClientFetchMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	snapshot, err := New(server.URL, "", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestClientSave(t *testing.T) {
	existing := dbt.Snapshot{UpdatedAt: "2025-10-27T11:00:00Z", Segments: []segment.Segment{}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SaveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if req.BaseUpdatedAt == "stale" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(SaveResponse{Conflict: &existing})
			return
		}
		_ = json.NewEncoder(w).Encode(SaveResponse{Snapshot: &req.Snapshot})
	}))
	defer server.Close()

	client := New(server.URL, "", time.Second)
	toSave := dbt.Snapshot{UpdatedAt: "2025-10-27T12:00:00Z", Segments: []segment.Segment{}}

	saved, err := client.Save(context.Background(), toSave, dbt.SaveOptions{BaseUpdatedAt: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, toSave, saved)

	_, err = client.Save(context.Background(), toSave, dbt.SaveOptions{BaseUpdatedAt: "stale"})
	conflict, ok := dbt.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, existing, conflict.Existing)
}

func TestClientUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(APIError{Code: "storage", Message: "database is down"})
	}))
	defer server.Close()

	_, err := New(server.URL, "", time.Second).HealthCheck(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "database is down")
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, "", 200*time.Millisecond).Fetch(context.Background())
	assert.Error(t, err)
}
