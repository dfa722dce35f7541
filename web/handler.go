package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	dbt "tracker/db/db"
	"tracker/db/rest"
	"tracker/libs/timeutil"
	"tracker/mq/mq"
)

const defaultScope = "default"

var scopePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type snapshotHandler struct {
	stores StoreProvider
	queue  mq.SnapshotMessageQueue
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, rest.APIError{Code: code, Message: message})
}

// scope reads ?scope=, falling back to the default scope.
func scope(c *gin.Context) (string, bool) {
	s := c.DefaultQuery("scope", defaultScope)
	if !scopePattern.MatchString(s) {
		abortWithError(c, http.StatusBadRequest, "invalid_scope", "scope must be 1-64 letters, digits, '-' or '_'")
		return "", false
	}
	return s, true
}

func (h *snapshotHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, rest.HealthResponse{Status: "ok"})
}

func (h *snapshotHandler) getSnapshot(c *gin.Context) {
	sc, ok := scope(c)
	if !ok {
		return
	}
	snapshot, err := h.stores.Store(sc).Fetch(c.Request.Context())
	if err != nil {
		log.Printf("[web] fetch snapshot %s: %v", sc, err)
		abortWithError(c, http.StatusInternalServerError, "storage_error", "failed to read snapshot")
		return
	}
	if snapshot == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *snapshotHandler) putSnapshot(c *gin.Context) {
	sc, ok := scope(c)
	if !ok {
		return
	}
	var req rest.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if _, ok := timeutil.ParseISO(req.Snapshot.UpdatedAt); !ok {
		abortWithError(c, http.StatusBadRequest, "invalid_body", "snapshot.updatedAt must be an ISO-8601 timestamp")
		return
	}

	saved, err := h.stores.Store(sc).Save(c.Request.Context(), req.Snapshot, dbt.SaveOptions{
		BaseUpdatedAt: req.BaseUpdatedAt,
		Force:         req.Force,
	})
	if conflict, ok := dbt.AsConflict(err); ok {
		c.JSON(http.StatusConflict, rest.SaveResponse{Conflict: &conflict.Existing})
		return
	}
	if err != nil {
		log.Printf("[web] save snapshot %s: %v", sc, err)
		abortWithError(c, http.StatusInternalServerError, "storage_error", "failed to save snapshot")
		return
	}

	h.publish(sc, saved, req.Force)
	c.JSON(http.StatusOK, rest.SaveResponse{Snapshot: &saved})
}

func (h *snapshotHandler) publish(sc string, saved dbt.Snapshot, forced bool) {
	if h.queue == nil {
		return
	}
	action := mq.ActionSave
	if forced {
		action = mq.ActionForce
	}
	msg := mq.SnapshotMessage{Scope: sc, Action: action, UpdatedAt: saved.UpdatedAt, SegmentCount: len(saved.Segments)}
	if err := h.queue.Publish(msg); err != nil {
		// the write already succeeded; subscribers only miss a notification
		log.Printf("[web] publish snapshot notification %s: %v", sc, err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// allow all origins, as the CORS config does
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	feedWriteTimeout = 5 * time.Second
	feedPingInterval = 30 * time.Second
)

// feed streams SnapshotMessage notifications for one scope over a websocket.
func (h *snapshotHandler) feed(c *gin.Context) {
	sc, ok := scope(c)
	if !ok {
		return
	}
	if h.queue == nil {
		abortWithError(c, http.StatusServiceUnavailable, "feed_unavailable", "no message queue configured")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[web] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	messages := make(chan mq.SnapshotMessage)
	identity := func(msg mq.SnapshotMessage) (mq.SnapshotMessage, bool, error) { return msg, false, nil }
	if err := mq.SubscribeProcessor[mq.SnapshotMessageQueue, mq.SnapshotMessage, mq.SnapshotMessage](sc, ctx, h.queue, identity, messages); err != nil {
		log.Printf("[web] subscribe feed %s: %v", sc, err)
		return
	}

	// the read loop only detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Printf("[web] feed write %s: %v", sc, err)
				}
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
