package api

import "time"

// AccuracyRequest carries either a daily actual figure or, with
// FromProvider, a date range to read from the provider's billing API.
type AccuracyRequest struct {
	Actual       string            `json:"actual,omitempty"`
	ByType       map[string]string `json:"by_type,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	FromProvider bool              `json:"from_provider,omitempty"`
	From         string            `json:"from,omitempty"`
	To           string            `json:"to,omitempty"`
}

type TypeGap struct {
	Type            string  `json:"type"`
	Estimated       string  `json:"estimated"`
	Actual          string  `json:"actual"`
	Gap             string  `json:"gap"`
	AccuracyPercent *string `json:"accuracy_percent"`
}

type AccuracyReport struct {
	RunID           string    `json:"run_id"`
	ConnectionID    string    `json:"provider_connection_id"`
	Estimated       string    `json:"estimated"`
	Actual          string    `json:"actual"`
	Gap             string    `json:"gap"`
	AccuracyPercent string    `json:"accuracy_percent"`
	ByType          []TypeGap `json:"by_type,omitempty"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}
