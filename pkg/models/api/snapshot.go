package api

import "time"

type CostComponent struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
	Rate     string `json:"rate"`
	Subtotal string `json:"subtotal"`
}

type Cost struct {
	Components  []CostComponent `json:"components"`
	Surcharges  string          `json:"surcharges"`
	Total       string          `json:"total"`
	Currency    string          `json:"currency"`
	RuleMissing bool            `json:"pricing_rule_missing,omitempty"`
}

type Link struct {
	Attribute  string `json:"attribute"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Status     string `json:"status"`
}

type Resource struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Scope      string         `json:"scope"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
	Extensions map[string]any `json:"extensions,omitempty"`
	Links      []Link         `json:"links,omitempty"`
	Cost       Cost           `json:"cost"`
}

type Totals struct {
	ByType map[string]string `json:"by_type"`
	Counts map[string]int    `json:"counts"`
	Grand  string            `json:"grand"`
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

type Snapshot struct {
	RunID                string         `json:"run_id"`
	ConnectionID         string         `json:"provider_connection_id"`
	Provider             string         `json:"provider"`
	PricingVersion       string         `json:"pricing_version"`
	Timestamp            time.Time      `json:"timestamp"`
	Resources            []Resource     `json:"resources"`
	Totals               Totals         `json:"totals"`
	UnresolvedLinks      []DanglingLink `json:"unresolved_links"`
	MissingPricingRules  []RuleKey      `json:"missing_pricing_rules"`
	MissingResourceTypes []TypeFailure  `json:"missing_resource_types"`
	Notes                []Note         `json:"notes,omitempty"`
}

// SnapshotSummary is a snapshot without its resources.
type SnapshotSummary struct {
	RunID          string    `json:"run_id"`
	ConnectionID   string    `json:"provider_connection_id"`
	PricingVersion string    `json:"pricing_version"`
	Timestamp      time.Time `json:"timestamp"`
	Resources      int       `json:"resources"`
	Grand          string    `json:"grand"`
	Currency       string    `json:"currency"`
}

type ResourceTypes struct {
	ConnectionID string   `json:"provider_connection_id"`
	Types        []string `json:"types"`
}
