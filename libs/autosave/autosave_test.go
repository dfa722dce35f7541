package autosave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/libs/autosave"
)

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) add(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestScheduleCoalescesPayloads(t *testing.T) {
	rec := &recorder{}
	q := autosave.New(autosave.Options[string]{
		Delay: 300 * time.Millisecond,
		OnFlush: func(_ context.Context, value string) error {
			rec.add(value)
			return nil
		},
	})

	q.Schedule("first")
	q.Schedule("second")

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "nothing flushes inside the debounce window")

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, []string{"second"}, rec.snapshot())
}

func TestFlushesNeverOverlap(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	var running, maxRunning int
	var mu sync.Mutex

	q := autosave.New(autosave.Options[string]{
		Delay: 20 * time.Millisecond,
		OnFlush: func(_ context.Context, value string) error {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			rec.add("start-" + value)
			if value == "alpha" {
				<-release
			}
			rec.add("end-" + value)

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		},
	})

	q.Schedule("alpha")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	q.Schedule("beta")
	// the beta timer expires while alpha is still in flight
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"start-alpha"}, rec.snapshot())

	close(release)
	require.NoError(t, q.FlushNow(context.Background()))

	assert.Equal(t, []string{"start-alpha", "end-alpha", "start-beta", "end-beta"}, rec.snapshot())
	assert.Equal(t, 1, maxRunning)
}

func TestFlushNowSkipsDelay(t *testing.T) {
	rec := &recorder{}
	q := autosave.New(autosave.Options[string]{
		Delay: time.Hour,
		OnFlush: func(_ context.Context, value string) error {
			rec.add(value)
			return nil
		},
	})

	q.Schedule("now")
	require.NoError(t, q.FlushNow(context.Background()))
	assert.Equal(t, []string{"now"}, rec.snapshot())
	assert.False(t, q.Pending())

	// nothing pending is a no-op
	require.NoError(t, q.FlushNow(context.Background()))
	assert.Len(t, rec.snapshot(), 1)
}

func TestFlushNowReturnsError(t *testing.T) {
	boom := errors.New("disk full")
	var statuses []autosave.Status
	var mu sync.Mutex

	q := autosave.New(autosave.Options[string]{
		Delay: time.Hour,
		OnFlush: func(_ context.Context, _ string) error {
			return boom
		},
		OnStatusChange: func(status autosave.Status, _ error) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, status)
		},
	})

	q.Schedule("x")
	err := q.FlushNow(context.Background())
	assert.ErrorIs(t, err, boom)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []autosave.Status{autosave.StatusScheduled, autosave.StatusSaving, autosave.StatusError}, statuses)
}

func TestTimerPathReportsErrorViaStatus(t *testing.T) {
	errCh := make(chan error, 1)
	q := autosave.New(autosave.Options[int]{
		Delay: 10 * time.Millisecond,
		OnFlush: func(_ context.Context, _ int) error {
			return errors.New("offline")
		},
		OnStatusChange: func(status autosave.Status, err error) {
			if status == autosave.StatusError {
				errCh <- err
			}
		},
	})

	q.Schedule(1)
	select {
	case err := <-errCh:
		assert.EqualError(t, err, "offline")
	case <-time.After(time.Second):
		t.Fatal("expected an error status")
	}
}

func TestCancelDropsPending(t *testing.T) {
	rec := &recorder{}
	q := autosave.New(autosave.Options[string]{
		Delay: 30 * time.Millisecond,
		OnFlush: func(_ context.Context, value string) error {
			rec.add(value)
			return nil
		},
	})

	q.Schedule("dropped")
	assert.True(t, q.Pending())
	q.Cancel()
	assert.False(t, q.Pending())

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestFlushNowHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	q := autosave.New(autosave.Options[string]{
		Delay: time.Hour,
		OnFlush: func(_ context.Context, _ string) error {
			<-block
			return nil
		},
	})
	q.Schedule("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.FlushNow(ctx), context.DeadlineExceeded)
}

func TestLastStatusIsIdleAfterChainedFlushes(t *testing.T) {
	var mu sync.Mutex
	var last autosave.Status
	q := autosave.New(autosave.Options[int]{
		Delay:   time.Millisecond,
		OnFlush: func(context.Context, int) error { return nil },
		OnStatusChange: func(status autosave.Status, _ error) {
			mu.Lock()
			last = status
			mu.Unlock()
		},
	})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				q.Schedule(w*100 + i)
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, q.FlushNow(context.Background()))

	assert.False(t, q.Pending())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, autosave.StatusIdle, last)
}
