package connectivity

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CheckFunc reports nil when the remote is reachable.
type CheckFunc func(ctx context.Context) error

// Prober runs a health check on a cron schedule and feeds the result into a Signal.
type Prober struct {
	signal  *Signal
	check   CheckFunc
	timeout time.Duration
	cron    *cron.Cron
}

// NewProber validates schedule (a cron expression or descriptor such as "@every 15s").
func NewProber(signal *Signal, check CheckFunc, schedule string, timeout time.Duration) (*Prober, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &Prober{
		signal:  signal,
		check:   check,
		timeout: timeout,
		cron:    cron.New(),
	}
	if _, err := p.cron.AddFunc(schedule, func() { p.ProbeOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid probe schedule %q: %w", schedule, err)
	}
	return p, nil
}

// ProbeOnce runs the check now and returns the resulting state.
func (p *Prober) ProbeOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	online := err == nil
	if !online && p.signal.Online() {
		log.Printf("[connectivity] remote unreachable: %v", err)
	}
	if online && !p.signal.Online() {
		log.Printf("[connectivity] remote reachable again")
	}
	p.signal.Set(online)
	return online
}

func (p *Prober) Start() {
	p.cron.Start()
}

// Stop halts the schedule and waits for a running probe to finish.
func (p *Prober) Stop() {
	<-p.cron.Stop().Done()
}
