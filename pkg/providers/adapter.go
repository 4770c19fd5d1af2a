package providers

import (
	"context"
	"time"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// Session is an authenticated provider session.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
// A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Page struct {
	Entries   []domain.RawEntry
	NextToken string
}

// Adapter wraps raw listing calls of one provider.
//
// ListPage returns classified *Error values: CategoryUnavailable when the
// provider refuses the endpoint, CategoryTransient for retryable failures and
// CategorySessionExpired when the session passed in was rejected.
type Adapter interface {
	Kind() domain.ProviderKind
	ResourceTypes() []domain.ResourceType
	Authenticate(ctx context.Context, credential domain.CredentialHandle) (Session, error)
	ListPage(ctx context.Context, session Session, scope domain.Scope, resourceType domain.ResourceType, pageToken string) (Page, error)
}

// Factory builds an adapter for a connection.
type Factory func(ctx context.Context, conn domain.Connection) (Adapter, error)
