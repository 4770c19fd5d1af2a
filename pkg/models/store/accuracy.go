package store

import "time"

type TypeGap struct {
	Type            string  `json:"type"`
	Estimated       string  `json:"estimated"`
	Actual          string  `json:"actual"`
	Gap             string  `json:"gap"`
	AccuracyPercent *string `json:"accuracy_percent"`
}

type AccuracyReport struct {
	RunID           string
	ConnectionID    string
	Estimated       string
	Actual          string
	Gap             string
	AccuracyPercent string
	ByType          []TypeGap
	Source          string
	CreatedAt       time.Time
}
