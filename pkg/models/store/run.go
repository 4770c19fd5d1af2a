package store

import "time"

type Run struct {
	ID           string
	ConnectionID string
	Status       string
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorCode    *string
	Error        *string
	Delta        *Delta
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
	PreviousRunID string        `json:"previous_run_id"`
	Added         []ResourceRef `json:"added"`
	Removed       []ResourceRef `json:"removed"`
	CostChanged   []CostChange  `json:"cost_changed"`
}
