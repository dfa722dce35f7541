package autosave

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyDropsOvertakenTransition(t *testing.T) {
	var mu sync.Mutex
	var got []Status
	q := New(Options[int]{
		OnFlush: func(context.Context, int) error { return nil },
		OnStatusChange: func(status Status, _ error) {
			mu.Lock()
			got = append(got, status)
			mu.Unlock()
		},
	})

	// a schedule stamped before a chained flush finished, delivered after it
	q.mu.Lock()
	scheduled := q.nextSeqLocked()
	saving := q.nextSeqLocked()
	idle := q.nextSeqLocked()
	q.mu.Unlock()

	q.notify(saving, StatusSaving, nil)
	q.notify(idle, StatusIdle, nil)
	q.notify(scheduled, StatusScheduled, nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusSaving, StatusIdle}, got)
}
