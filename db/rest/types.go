package rest

import (
	dbt "tracker/db/db"
)

// Paths served by the snapshot server.
const (
	PathSnapshot = "/api/snapshot"
	PathHealth   = "/health"
	PathFeed     = "/api/ws"
)

// SaveRequest is the body of PUT /api/snapshot.
type SaveRequest struct {
	Snapshot      dbt.Snapshot `json:"snapshot"`
	BaseUpdatedAt string       `json:"baseUpdatedAt,omitempty"`
	Force         bool         `json:"force,omitempty"`
}

// SaveResponse carries the stored snapshot (200) or the conflicting one (409).
type SaveResponse struct {
	Snapshot *dbt.Snapshot `json:"snapshot,omitempty"`
	Conflict *dbt.Snapshot `json:"conflict,omitempty"`
}

// HealthResponse is the response from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// APIError is the body of every other error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
