package cmd

import (
	"context"
	"fmt"
	"log"

	"tracker/connectivity"
	"tracker/db/disk"
	dbt "tracker/db/db"
	"tracker/db/rest"
	"tracker/persist"
	"tracker/route"
)

// session wires the local-first pipeline for one CLI invocation.
type session struct {
	local    *persist.LocalStore
	store    *route.Store
	signal   *connectivity.Signal
	prober   *connectivity.Prober
	pipeline *persist.Pipeline
}

func openSession(ctx context.Context) (*session, error) {
	var kv dbt.KVStore
	if diskStore, err := disk.NewDiskKVStore(cfg.LocalPath); err != nil {
		log.Printf("[storage] %s unavailable, continuing in memory: %v", cfg.LocalPath, err)
	} else {
		kv = diskStore
	}
	local := persist.NewLocalStore(kv)

	client := rest.New(cfg.RemoteURL, cfg.Scope, cfg.RemoteTimeout)
	signal := connectivity.NewSignal(false)
	prober, err := connectivity.NewProber(signal, func(ctx context.Context) error {
		_, err := client.HealthCheck(ctx)
		return err
	}, cfg.ProbeSchedule, cfg.RemoteTimeout)
	if err != nil {
		return nil, err
	}
	prober.ProbeOnce(ctx)

	store := route.NewStore(route.WithDefaultCurrency(cfg.DefaultCurrency))
	pipeline := persist.New(store, local, client, signal, persist.Options{Delay: cfg.AutosaveDelay})
	if err := pipeline.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start autosave: %w", err)
	}

	return &session{
		local:    local,
		store:    store,
		signal:   signal,
		prober:   prober,
		pipeline: pipeline,
	}, nil
}

// Close flushes pending changes before tearing the pipeline down.
func (s *session) Close(ctx context.Context) error {
	err := s.pipeline.Flush(ctx)
	s.pipeline.Close()
	if err != nil {
		return fmt.Errorf("failed to save changes: %w", err)
	}
	return nil
}

// withSession runs fn inside a session and reports the final persistence state.
func withSession(ctx context.Context, fn func(s *session) error) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	runErr := fn(s)
	closeErr := s.Close(ctx)
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		printState(s.pipeline.State())
		return closeErr
	}
	return nil
}
