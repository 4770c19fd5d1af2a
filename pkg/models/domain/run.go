package domain

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusFinished  RunStatus = "finished"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

func (s RunStatus) Terminal() bool {
	return s == RunStatusFinished || s == RunStatusFailed || s == RunStatusCancelled
}

type Run struct {
	ID           string
	ConnectionID string
	Status       RunStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorCode    string
	Error        *string
	Delta        *Delta
}
