package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tracker/db/rest"
	"tracker/mq/mq"
)

type ServiceConfig struct {
	IsDev  bool
	Port   string
	Stores StoreProvider
	// Queue receives a notification for every accepted save. Optional.
	Queue mq.SnapshotMessageQueue
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// NewRouter builds the snapshot server routes.
func NewRouter(cfg ServiceConfig) *gin.Engine {
	if !cfg.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}
	var limiter *RateLimiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = NewRateLimiter(cfg.RateLimit, burst)
	}

	r := gin.New()
	setupMiddlewares(r, limiter)

	h := &snapshotHandler{stores: cfg.Stores, queue: cfg.Queue}
	r.GET(rest.PathHealth, h.health)
	r.GET(rest.PathSnapshot, h.getSnapshot)
	r.PUT(rest.PathSnapshot, h.putSnapshot)
	r.GET(rest.PathFeed, h.feed)
	return r
}

// Serve runs the server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, cfg ServiceConfig) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[web] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Printf("[web] shutting down")
	return srv.Shutdown(shutdownCtx)
}
