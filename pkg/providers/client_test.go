package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

type pageResult struct {
	page Page
	err  error
}

type fakeAdapter struct {
	mu        sync.Mutex
	types     []domain.ResourceType
	pages     map[string][]pageResult
	authErrs  []error
	authCalls int
	calls     map[string]int
	tokens    []string
	expiresIn time.Duration
}

func newFakeAdapter(types ...domain.ResourceType) *fakeAdapter {
	return &fakeAdapter{
		types: types,
		pages: make(map[string][]pageResult),
		calls: make(map[string]int),
	}
}

func (f *fakeAdapter) on(token string, results ...pageResult) *fakeAdapter {
	f.pages[token] = append(f.pages[token], results...)
	return f
}

func (f *fakeAdapter) Kind() domain.ProviderKind { return domain.ProviderYandex }

func (f *fakeAdapter) ResourceTypes() []domain.ResourceType { return f.types }

func (f *fakeAdapter) Authenticate(_ context.Context, _ domain.CredentialHandle) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authCalls++
	if len(f.authErrs) > 0 {
		err := f.authErrs[0]
		f.authErrs = f.authErrs[1:]
		if err != nil {
			return Session{}, err
		}
	}
	sess := Session{Token: fmt.Sprintf("token-%d", f.authCalls)}
	if f.expiresIn != 0 {
		sess.ExpiresAt = time.Now().Add(f.expiresIn)
	}
	return sess, nil
}

func (f *fakeAdapter) ListPage(_ context.Context, sess Session, _ domain.Scope, _ domain.ResourceType, pageToken string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[pageToken]++
	f.tokens = append(f.tokens, sess.Token)
	queue := f.pages[pageToken]
	if len(queue) == 0 {
		return Page{}, nil
	}
	res := queue[0]
	if len(queue) > 1 {
		f.pages[pageToken] = queue[1:]
	}
	return res.page, res.err
}

func testConnection() domain.Connection {
	return domain.Connection{
		ID:       "conn-1",
		Provider: domain.ProviderYandex,
		Limits: domain.Limits{
			MaxConcurrency:    2,
			RequestsPerSecond: 1000,
			Burst:             100,
			CallTimeout:       time.Second,
			MaxAttempts:       3,
			InitialInterval:   time.Millisecond,
			MaxInterval:       2 * time.Millisecond,
		},
	}
}

func entries(ids ...string) []domain.RawEntry {
	out := make([]domain.RawEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.RawEntry{ID: id, Fields: map[string]any{"id": id}})
	}
	return out
}

func TestClient_Collect(t *testing.T) {
	transient := Transient(domain.ProviderYandex, domain.ResourceRegistry, "throttled", errors.New("429"))

	t.Run("multiple pages", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceComputeInstance).
			on("", pageResult{page: Page{Entries: entries("a", "b"), NextToken: "p2"}}).
			on("p2", pageResult{page: Page{Entries: entries("c")}})

		listing, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceComputeInstance)
		require.NoError(t, err)
		assert.Equal(t, OutcomeData, listing.Outcome)
		assert.Len(t, listing.Entries, 3)
		assert.Equal(t, 1, adapter.authCalls)
	})

	t.Run("empty listing", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceDNSZone)

		listing, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceDNSZone)
		require.NoError(t, err)
		assert.Equal(t, OutcomeEmpty, listing.Outcome)
		assert.Empty(t, listing.Entries)
	})

	t.Run("unsupported endpoint", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceRegistry).
			on("", pageResult{err: Unavailable(domain.ProviderYandex, domain.ResourceRegistry, "permission denied", nil)})

		listing, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceRegistry)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnsupported, listing.Outcome)
		assert.True(t, IsCategory(listing.Reason, CategoryUnavailable))
		assert.Equal(t, 1, adapter.calls[""])
	})

	t.Run("type unknown to adapter", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceComputeInstance)

		listing, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceQueueCluster)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnsupported, listing.Outcome)
		assert.Equal(t, 0, adapter.authCalls)
	})

	t.Run("transient failure retries only the failing page", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceRegistry).
			on("", pageResult{page: Page{Entries: entries("a"), NextToken: "p2"}}).
			on("p2", pageResult{err: transient}, pageResult{page: Page{Entries: entries("b")}})

		listing, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceRegistry)
		require.NoError(t, err)
		assert.Equal(t, OutcomeData, listing.Outcome)
		assert.Len(t, listing.Entries, 2)
		assert.Equal(t, 1, adapter.calls[""])
		assert.Equal(t, 2, adapter.calls["p2"])
	})

	t.Run("exhausted retries mark the type unavailable", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceRegistry).
			on("", pageResult{page: Page{Entries: entries("a"), NextToken: "p2"}}).
			on("p2", pageResult{err: transient})

		listing, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceRegistry)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnsupported, listing.Outcome)
		assert.Empty(t, listing.Entries)
		assert.Equal(t, 3, adapter.calls["p2"])
	})

	t.Run("authentication failure is fatal", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceComputeInstance)
		adapter.authErrs = []error{AuthenticationFailure(domain.ProviderYandex, "bad key", nil)}

		_, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceComputeInstance)
		require.Error(t, err)
		assert.True(t, IsCategory(err, CategoryAuthentication))
		assert.Equal(t, 1, adapter.authCalls)
	})

	t.Run("unclassified authentication error is fatal", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceComputeInstance)
		adapter.authErrs = []error{errors.New("invalid key document")}

		_, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceComputeInstance)
		require.Error(t, err)
		assert.True(t, IsCategory(err, CategoryAuthentication))
	})

	t.Run("expired session re-authenticates once", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceComputeInstance).
			on("", pageResult{err: SessionExpired(domain.ProviderYandex, domain.ResourceComputeInstance, nil)},
				pageResult{page: Page{Entries: entries("a")}})

		listing, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceComputeInstance)
		require.NoError(t, err)
		assert.Equal(t, OutcomeData, listing.Outcome)
		assert.Equal(t, 2, adapter.authCalls)
		assert.Equal(t, []string{"token-1", "token-2"}, adapter.tokens)
	})

	t.Run("second expiry is an authentication failure", func(t *testing.T) {
		expired := SessionExpired(domain.ProviderYandex, domain.ResourceComputeInstance, nil)
		adapter := newFakeAdapter(domain.ResourceComputeInstance).
			on("", pageResult{err: expired})

		_, err := NewClient(adapter, testConnection()).Collect(context.Background(), domain.Scope{}, domain.ResourceComputeInstance)
		require.Error(t, err)
		assert.True(t, IsCategory(err, CategoryAuthentication))
		assert.Equal(t, 2, adapter.authCalls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		adapter := newFakeAdapter(domain.ResourceComputeInstance)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewClient(adapter, testConnection()).Collect(ctx, domain.Scope{}, domain.ResourceComputeInstance)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_ProactiveRefresh(t *testing.T) {
	adapter := newFakeAdapter(domain.ResourceComputeInstance).
		on("", pageResult{page: Page{Entries: entries("a")}})
	adapter.expiresIn = time.Minute

	client := NewClient(adapter, testConnection())
	now := time.Now()
	client.now = func() time.Time { return now }

	_, err := client.Collect(context.Background(), domain.Scope{}, domain.ResourceComputeInstance)
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.authCalls)

	now = now.Add(2 * time.Minute)
	_, err = client.Collect(context.Background(), domain.Scope{}, domain.ResourceComputeInstance)
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.authCalls)
}

func TestClient_ListResourcesStopsEarly(t *testing.T) {
	adapter := newFakeAdapter(domain.ResourceComputeInstance).
		on("", pageResult{page: Page{Entries: entries("a", "b"), NextToken: "p2"}}).
		on("p2", pageResult{page: Page{Entries: entries("c")}})

	var seen []string
	for entry, err := range NewClient(adapter, testConnection()).ListResources(context.Background(), domain.Scope{}, domain.ResourceComputeInstance) {
		require.NoError(t, err)
		seen = append(seen, entry.ID)
		if len(seen) == 1 {
			break
		}
	}

	assert.Equal(t, []string{"a"}, seen)
	assert.Equal(t, 0, adapter.calls["p2"])
}
