package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "tracker/db/db"
	"tracker/db/rest"
	"tracker/mq/goch"
	"tracker/mq/mq"
	"tracker/segment"
	"tracker/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, cfg web.ServiceConfig) *httptest.Server {
	t.Helper()
	cfg.IsDev = true
	if cfg.Stores == nil {
		cfg.Stores = web.NewMemoryStoreProvider()
	}
	srv := httptest.NewServer(web.NewRouter(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func snapshot(updatedAt string, ids ...string) dbt.Snapshot {
	s := dbt.Snapshot{UpdatedAt: updatedAt}
	for i, id := range ids {
		s.Segments = append(s.Segments, segment.Segment{ID: id, TeamID: "A", LegNo: 1, Type: segment.TypeBus, OrderIdx: i})
	}
	return s
}

func TestHealth(t *testing.T) {
	srv := newServer(t, web.ServiceConfig{})
	health, err := rest.New(srv.URL, "", time.Second).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestSnapshotRoundTripWithConflict(t *testing.T) {
	srv := newServer(t, web.ServiceConfig{})
	client := rest.New(srv.URL, "team-a", time.Second)
	ctx := context.Background()

	fetched, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, fetched)

	a := snapshot("2025-10-27T10:00:00Z", "seg-1")
	_, err = client.Save(ctx, a, dbt.SaveOptions{})
	require.NoError(t, err)

	b := snapshot("2025-10-27T11:00:00Z", "seg-1", "seg-2")
	saved, err := client.Save(ctx, b, dbt.SaveOptions{BaseUpdatedAt: a.UpdatedAt})
	require.NoError(t, err)
	assert.Equal(t, b.UpdatedAt, saved.UpdatedAt)

	c := snapshot("2025-10-27T12:00:00Z", "seg-3")
	_, err = client.Save(ctx, c, dbt.SaveOptions{BaseUpdatedAt: a.UpdatedAt})
	conflict, ok := dbt.AsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, b, conflict.Existing)

	_, err = client.Save(ctx, c, dbt.SaveOptions{BaseUpdatedAt: a.UpdatedAt, Force: true})
	require.NoError(t, err)
	fetched, err = client.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, c, *fetched)
}

func TestScopesAreIsolated(t *testing.T) {
	srv := newServer(t, web.ServiceConfig{})
	ctx := context.Background()

	_, err := rest.New(srv.URL, "one", time.Second).Save(ctx, snapshot("2025-10-27T10:00:00Z", "seg-1"), dbt.SaveOptions{})
	require.NoError(t, err)

	fetched, err := rest.New(srv.URL, "two", time.Second).Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestBadRequests(t *testing.T) {
	srv := newServer(t, web.ServiceConfig{})

	resp, err := http.Get(srv.URL + rest.PathSnapshot + "?scope=" + strings.Repeat("x", 65))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, srv.URL+rest.PathSnapshot, strings.NewReader(`{"snapshot":{"updatedAt":"yesterday"}}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = rest.New(srv.URL, "", time.Second).Save(context.Background(), dbt.Snapshot{UpdatedAt: "not a time"}, dbt.SaveOptions{})
	assert.ErrorIs(t, err, rest.ErrUnexpectedStatus)
}

func TestRateLimit(t *testing.T) {
	srv := newServer(t, web.ServiceConfig{RateLimit: 0.01, RateBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + rest.PathHealth)
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestFeedStreamsSaves(t *testing.T) {
	queue := goch.NewChannelSnapshotMessageQueue(0)
	t.Cleanup(func() { queue.Close() })
	srv := newServer(t, web.ServiceConfig{Queue: queue})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + rest.PathFeed + "?scope=team-a"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	client := rest.New(srv.URL, "team-a", time.Second)
	// the subscription is registered after the upgrade, so keep saving until a message arrives
	received := make(chan mq.SnapshotMessage, 1)
	go func() {
		var msg mq.SnapshotMessage
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
	}()

	var got mq.SnapshotMessage
	require.Eventually(t, func() bool {
		if _, err := client.Save(context.Background(), snapshot("2025-10-27T10:00:00Z", "seg-1", "seg-2"), dbt.SaveOptions{Force: true}); err != nil {
			return false
		}
		select {
		case got = <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "team-a", got.Scope)
	assert.Equal(t, mq.ActionForce, got.Action)
	assert.Equal(t, 2, got.SegmentCount)
}

func TestFeedWithoutQueue(t *testing.T) {
	srv := newServer(t, web.ServiceConfig{})
	resp, err := http.Get(srv.URL + rest.PathFeed)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
