package store

import "time"

// Snapshot is the header row of a persisted snapshot. Monetary values are
// decimal strings; nested collections are stored as JSON columns.
type Snapshot struct {
	RunID                string
	ConnectionID         string
	Provider             string
	PricingVersion       string
	Currency             string
	CreatedAt            time.Time
	Grand                string
	Totals               []TypeTotal
	UnresolvedLinks      []DanglingLink
	MissingPricingRules  []RuleKey
	MissingResourceTypes []TypeFailure
	Notes                []Note
	Resources            []Resource
}

type TypeTotal struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Total string `json:"total"`
}

type DanglingLink struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	Attribute  string `json:"attribute"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
}

type RuleKey struct {
	Provider     string `json:"provider"`
	ResourceType string `json:"resource_type"`
}

type TypeFailure struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type Note struct {
	Code    string `json:"code"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type Resource struct {
	ResourceType string
	ID           string
	Provider     string
	Scope        string
	Name         string
	Attributes   map[string]any
	Extensions   map[string]any
	Links        []Link
	Cost         CostLineItem
}

type Link struct {
	Attribute       string `json:"attribute"`
	TargetType      string `json:"target_type"`
	TargetID        string `json:"target_id"`
	TargetAttribute string `json:"target_attribute"`
	Status          string `json:"status"`
}

type CostComponent struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
	Rate     string `json:"rate"`
	Subtotal string `json:"subtotal"`
}

type CostLineItem struct {
	Components  []CostComponent `json:"components"`
	Surcharges  string          `json:"surcharges"`
	Total       string          `json:"total"`
	Currency    string          `json:"currency"`
	RuleMissing bool            `json:"rule_missing"`
}
