package providers

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

type Outcome string

const (
	OutcomeData        Outcome = "data"
	OutcomeEmpty       Outcome = "empty"
	OutcomeUnsupported Outcome = "unsupported"
)

// Listing is the complete result of one resource type listing.
type Listing struct {
	Type    domain.ResourceType
	Outcome Outcome
	Entries []domain.RawEntry
	Reason  error
}

// Client drives an Adapter for a single run. It owns authentication,
// retries, rate limiting (through its Quota) and per-call timeouts, so callers can issue
// listings concurrently without throttling themselves.
type Client struct {
	adapter    Adapter
	credential domain.CredentialHandle
	limits     domain.Limits
	quota      *Quota
	now        func() time.Time

	mu      sync.Mutex
	session *Session
}

type ClientOption func(*Client)

// WithQuota makes the client draw from a shared quota instead of its own.
func WithQuota(quota *Quota) ClientOption {
	return func(c *Client) {
		if quota != nil {
			c.quota = quota
		}
	}
}

func NewClient(adapter Adapter, conn domain.Connection, opts ...ClientOption) *Client {
	limits := conn.Limits.WithDefaults()
	c := &Client{
		adapter:    adapter,
		credential: conn.Credential,
		limits:     limits,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.quota == nil {
		c.quota = NewQuota(limits)
	}
	return c
}

func (c *Client) Kind() domain.ProviderKind {
	return c.adapter.Kind()
}

// Supports reports whether the adapter knows how to list resourceType.
func (c *Client) Supports(resourceType domain.ResourceType) bool {
	return slices.Contains(c.adapter.ResourceTypes(), resourceType)
}

// Authenticate forces a new session.
func (c *Client) Authenticate(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) (Session, error) {
	op := func() (Session, error) {
		sess, err := c.adapter.Authenticate(ctx, c.credential)
		if err == nil {
			return sess, nil
		}
		if IsCategory(err, CategoryTransient) {
			return Session{}, err
		}
		return Session{}, backoff.Permanent(err)
	}

	sess, err := backoff.Retry(ctx, op, c.retryOptions(ctx, "")...)
	if err != nil {
		err = unwrapPermanent(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Session{}, ctxErr
		}
		var pErr *Error
		if errors.As(err, &pErr) && pErr.Category == CategoryAuthentication {
			return Session{}, err
		}
		return Session{}, AuthenticationFailure(c.adapter.Kind(), "authentication failed", err)
	}

	c.session = &sess
	return sess, nil
}

func (c *Client) currentSession(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && !c.session.Expired(c.now()) {
		return *c.session, nil
	}
	return c.authenticateLocked(ctx)
}

// reauthenticate replaces stale unless another caller already did.
func (c *Client) reauthenticate(ctx context.Context, stale Session) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Token != stale.Token && !c.session.Expired(c.now()) {
		return *c.session, nil
	}
	return c.authenticateLocked(ctx)
}

// ListResources lazily yields entries page by page. Each page is retried on
// its own, so a transient failure restarts that page only. Iteration stops
// after the first error.
func (c *Client) ListResources(ctx context.Context, scope domain.Scope, resourceType domain.ResourceType) iter.Seq2[domain.RawEntry, error] {
	return func(yield func(domain.RawEntry, error) bool) {
		token := ""
		for {
			page, err := c.fetchPage(ctx, scope, resourceType, token)
			if err != nil {
				yield(domain.RawEntry{}, err)
				return
			}
			for _, entry := range page.Entries {
				if !yield(entry, nil) {
					return
				}
			}
			if page.NextToken == "" || page.NextToken == token {
				return
			}
			token = page.NextToken
		}
	}
}

// Collect drains a listing. An unsupported or exhausted resource type is
// reported through Listing.Outcome; only authentication failures and
// cancellation are returned as errors. Entries already read from a listing
// that later fails are discarded.
func (c *Client) Collect(ctx context.Context, scope domain.Scope, resourceType domain.ResourceType) (Listing, error) {
	listing := Listing{Type: resourceType}
	if !c.Supports(resourceType) {
		listing.Outcome = OutcomeUnsupported
		listing.Reason = Unavailable(c.adapter.Kind(), resourceType, "resource type not supported by provider", nil)
		return listing, nil
	}

	var entries []domain.RawEntry
	for entry, err := range c.ListResources(ctx, scope, resourceType) {
		if err != nil {
			if IsCategory(err, CategoryUnavailable) {
				listing.Outcome = OutcomeUnsupported
				listing.Reason = err
				return listing, nil
			}
			return Listing{}, err
		}
		entries = append(entries, entry)
	}

	listing.Entries = entries
	if len(entries) == 0 {
		listing.Outcome = OutcomeEmpty
	} else {
		listing.Outcome = OutcomeData
	}
	return listing, nil
}

func (c *Client) fetchPage(ctx context.Context, scope domain.Scope, resourceType domain.ResourceType, token string) (Page, error) {
	op := func() (Page, error) {
		page, err := c.callWithSession(ctx, scope, resourceType, token)
		if err == nil {
			return page, nil
		}
		if ctx.Err() == nil && IsCategory(err, CategoryTransient) {
			return Page{}, err
		}
		return Page{}, backoff.Permanent(err)
	}

	page, err := backoff.Retry(ctx, op, c.retryOptions(ctx, resourceType)...)
	if err == nil {
		return page, nil
	}
	err = unwrapPermanent(err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Page{}, ctxErr
	}
	if IsCategory(err, CategoryTransient) {
		return Page{}, Unavailable(c.adapter.Kind(), resourceType,
			fmt.Sprintf("retries exhausted after %d attempts", c.limits.MaxAttempts), err)
	}
	return Page{}, err
}

func (c *Client) callWithSession(ctx context.Context, scope domain.Scope, resourceType domain.ResourceType, token string) (Page, error) {
	sess, err := c.currentSession(ctx)
	if err != nil {
		return Page{}, err
	}

	page, err := c.call(ctx, sess, scope, resourceType, token)
	if !IsCategory(err, CategorySessionExpired) {
		return page, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("resource_type", string(resourceType)).
		Msg("session expired, re-authenticating")

	sess, err = c.reauthenticate(ctx, sess)
	if err != nil {
		return Page{}, err
	}

	page, err = c.call(ctx, sess, scope, resourceType, token)
	if IsCategory(err, CategorySessionExpired) {
		return Page{}, AuthenticationFailure(c.adapter.Kind(), "session rejected after re-authentication", err)
	}
	return page, err
}

func (c *Client) call(ctx context.Context, sess Session, scope domain.Scope, resourceType domain.ResourceType, token string) (Page, error) {
	if err := c.quota.sem.Acquire(ctx, 1); err != nil {
		return Page{}, err
	}
	defer c.quota.sem.Release(1)

	if err := c.quota.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.limits.CallTimeout)
	defer cancel()

	page, err := c.adapter.ListPage(callCtx, sess, scope, resourceType, token)
	if err == nil {
		return page, nil
	}
	if ctx.Err() != nil {
		return Page{}, ctx.Err()
	}
	if CategoryOf(err) != "" {
		return Page{}, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Page{}, Transient(c.adapter.Kind(), resourceType, "call timed out", err)
	}
	return Page{}, Transient(c.adapter.Kind(), resourceType, "unclassified provider error", err)
}

func (c *Client) retryOptions(ctx context.Context, resourceType domain.ResourceType) []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.limits.InitialInterval
	b.MaxInterval = c.limits.MaxInterval

	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.limits.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("resource_type", string(resourceType)).
				Dur("retry_in", next).
				Msg("provider call failed, retrying")
		}),
	}
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) && perm.Err != nil {
		return perm.Err
	}
	return err
}
