package domain

import (
	"errors"
	"fmt"
	"time"
)

type ProviderKind string

const (
	ProviderAWS        ProviderKind = "aws"
	ProviderAzure      ProviderKind = "azure"
	ProviderDatabricks ProviderKind = "databricks"
	ProviderSnowflake  ProviderKind = "snowflake"
	ProviderYandex     ProviderKind = "yandex"
)

var ProviderKinds = []ProviderKind{
	ProviderAWS,
	ProviderAzure,
	ProviderDatabricks,
	ProviderSnowflake,
	ProviderYandex,
}

func (k ProviderKind) Valid() bool {
	for _, known := range ProviderKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Scope bounds discovery for one connection. Which fields are required
// depends on the provider kind.
type Scope struct {
	OrganizationID string
	AccountID      string
	FolderIDs      []string
	Regions        []string
	Extra          map[string]string
}

// CredentialHandle is only interpreted by provider adapters.
type CredentialHandle struct {
	Source string // profile, file, token, env
	Value  string
}

func (c CredentialHandle) String() string {
	return fmt.Sprintf("%s:<redacted>", c.Source)
}

type Limits struct {
	MaxConcurrency    int
	RequestsPerSecond float64
	Burst             int
	CallTimeout       time.Duration
	MaxAttempts       int
	InitialInterval   time.Duration
	MaxInterval       time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxConcurrency:    4,
		RequestsPerSecond: 10,
		Burst:             10,
		CallTimeout:       30 * time.Second,
		MaxAttempts:       4,
		InitialInterval:   200 * time.Millisecond,
		MaxInterval:       5 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxConcurrency <= 0 {
		l.MaxConcurrency = d.MaxConcurrency
	}
	if l.RequestsPerSecond <= 0 {
		l.RequestsPerSecond = d.RequestsPerSecond
	}
	if l.Burst <= 0 {
		l.Burst = d.Burst
	}
	if l.CallTimeout <= 0 {
		l.CallTimeout = d.CallTimeout
	}
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = d.MaxAttempts
	}
	if l.InitialInterval <= 0 {
		l.InitialInterval = d.InitialInterval
	}
	if l.MaxInterval <= 0 {
		l.MaxInterval = d.MaxInterval
	}
	return l
}

// Connection identifies one account/credential set at one provider.
// It is treated as immutable for the lifetime of a sync run.
type Connection struct {
	ID            string
	Provider      ProviderKind
	Scope         Scope
	Credential    CredentialHandle
	ResourceTypes []ResourceType
	Limits        Limits
}

var ErrUnknownConnection = errors.New("unknown connection")
