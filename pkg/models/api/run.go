package api

import "time"

type SyncResponse struct {
	RunID        string `json:"run_id"`
	ConnectionID string `json:"provider_connection_id"`
}

type ResourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CostChange struct {
	ResourceRef
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

type Delta struct {
	PreviousRunID string        `json:"previous_run_id,omitempty"`
	Added         []ResourceRef `json:"added"`
	Removed       []ResourceRef `json:"removed"`
	CostChanged   []CostChange  `json:"cost_changed"`
}

type Run struct {
	ID           string     `json:"run_id"`
	ConnectionID string     `json:"provider_connection_id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	Error        *string    `json:"error,omitempty"`
	Delta        *Delta     `json:"delta,omitempty"`
}
