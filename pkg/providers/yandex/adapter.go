package yandex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
)

const pageSize = "1000"

// TODO: list through github.com/yandex-cloud/go-sdk clients once it is pinned in go.mod.
type endpoint struct {
	host string
	path string
	key  string // collection field in the list response
}

var endpoints = map[domain.ResourceType]endpoint{
	domain.ResourceComputeInstance: {"https://compute.api.cloud.yandex.net", "/compute/v1/instances", "instances"},
	domain.ResourceBlockVolume:     {"https://compute.api.cloud.yandex.net", "/compute/v1/disks", "disks"},
	domain.ResourceDiskSnapshot:    {"https://compute.api.cloud.yandex.net", "/compute/v1/snapshots", "snapshots"},
	domain.ResourceImage:           {"https://compute.api.cloud.yandex.net", "/compute/v1/images", "images"},
	domain.ResourceReservedAddress: {"https://vpc.api.cloud.yandex.net", "/vpc/v1/addresses", "addresses"},
	domain.ResourceDatabaseCluster: {"https://mdb.api.cloud.yandex.net", "/managed-postgresql/v1/clusters", "clusters"},
	domain.ResourceQueueCluster:    {"https://mdb.api.cloud.yandex.net", "/managed-kafka/v1/clusters", "clusters"},
	domain.ResourceDNSZone:         {"https://dns.api.cloud.yandex.net", "/dns/v1/zones", "dnsZones"},
	domain.ResourceLoadBalancer:    {"https://load-balancer.api.cloud.yandex.net", "/load-balancer/v1/networkLoadBalancers", "networkLoadBalancers"},
	domain.ResourceRegistry:        {"https://container-registry.api.cloud.yandex.net", "/container-registry/v1/registries", "registries"},
}

var supportedTypes = []domain.ResourceType{
	domain.ResourceComputeInstance,
	domain.ResourceBlockVolume,
	domain.ResourceDiskSnapshot,
	domain.ResourceImage,
	domain.ResourceReservedAddress,
	domain.ResourceDatabaseCluster,
	domain.ResourceQueueCluster,
	domain.ResourceDNSZone,
	domain.ResourceLoadBalancer,
	domain.ResourceRegistry,
}

type Adapter struct {
	httpClient *http.Client
	tokenURL   string
	baseURL    string // overrides every endpoint host when set
	now        func() time.Time
}

func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{
		httpClient: httpClient,
		tokenURL:   IAMTokenURL,
		now:        time.Now,
	}
}

func Factory(_ context.Context, conn domain.Connection) (providers.Adapter, error) {
	if conn.Provider != domain.ProviderYandex {
		return nil, fmt.Errorf("connection %s is not a Yandex Cloud connection", conn.ID)
	}
	if len(conn.Scope.FolderIDs) == 0 {
		return nil, fmt.Errorf("connection %s: at least one folder id is required", conn.ID)
	}
	return New(nil), nil
}

func (a *Adapter) Kind() domain.ProviderKind {
	return domain.ProviderYandex
}

func (a *Adapter) ResourceTypes() []domain.ResourceType {
	return supportedTypes
}

// Authenticate exchanges a service account key for an IAM token. Sources:
// key_file (path to the key document), key (the document itself) and
// iam_token (a pre-issued token without known expiry).
func (a *Adapter) Authenticate(ctx context.Context, credential domain.CredentialHandle) (providers.Session, error) {
	var (
		key *ServiceAccountKey
		err error
	)
	switch credential.Source {
	case "key_file":
		key, err = LoadServiceAccountKey(credential.Value)
	case "key":
		key, err = ParseServiceAccountKey([]byte(credential.Value))
	case "iam_token":
		return providers.Session{Token: credential.Value}, nil
	default:
		err = fmt.Errorf("unsupported credential source %q", credential.Source)
	}
	if err != nil {
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderYandex, "invalid credential", err)
	}

	assertion, err := key.SignedJWT(IAMTokenURL, a.now())
	if err != nil {
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderYandex, "failed to sign token request", err)
	}

	resp, err := exchangeToken(ctx, a.httpClient, a.tokenURL, assertion)
	if err != nil {
		var tokErr *tokenError
		if errors.As(err, &tokErr) && !retryableStatus(tokErr.status) {
			return providers.Session{}, providers.AuthenticationFailure(domain.ProviderYandex, "token exchange rejected", err)
		}
		return providers.Session{}, providers.Transient(domain.ProviderYandex, "", "token exchange failed", err)
	}

	return providers.Session{Token: resp.IAMToken, ExpiresAt: resp.ExpiresAt}, nil
}

// ListPage walks the scope folders in order. The page token is
// "<folder id>|<api page token>".
func (a *Adapter) ListPage(
	ctx context.Context,
	session providers.Session,
	scope domain.Scope,
	resourceType domain.ResourceType,
	pageToken string,
) (providers.Page, error) {
	ep, ok := endpoints[resourceType]
	if !ok {
		return providers.Page{}, providers.Unavailable(domain.ProviderYandex, resourceType, "resource type not supported", nil)
	}
	if len(scope.FolderIDs) == 0 {
		return providers.Page{}, providers.Unavailable(domain.ProviderYandex, resourceType, "scope has no folder ids", nil)
	}

	folder, apiToken := scope.FolderIDs[0], ""
	if pageToken != "" {
		folder, apiToken, _ = strings.Cut(pageToken, "|")
	}
	idx := slices.Index(scope.FolderIDs, folder)
	if idx < 0 {
		return providers.Page{}, providers.Unavailable(domain.ProviderYandex, resourceType, "invalid page token",
			fmt.Errorf("page token refers to folder %q outside scope", folder))
	}

	items, next, err := a.list(ctx, session, ep, folder, apiToken, resourceType)
	if err != nil {
		return providers.Page{}, err
	}

	page := providers.Page{}
	for _, raw := range items {
		fields, err := providers.DecodeFields(raw)
		if err != nil {
			return providers.Page{}, providers.Transient(domain.ProviderYandex, resourceType, "malformed resource", err)
		}
		id, _ := fields["id"].(string)
		page.Entries = append(page.Entries, domain.RawEntry{ID: id, Fields: fields})
	}

	switch {
	case next != "":
		page.NextToken = folder + "|" + next
	case idx+1 < len(scope.FolderIDs):
		page.NextToken = scope.FolderIDs[idx+1] + "|"
	}
	return page, nil
}

func (a *Adapter) list(
	ctx context.Context,
	session providers.Session,
	ep endpoint,
	folder, apiToken string,
	resourceType domain.ResourceType,
) ([]json.RawMessage, string, error) {
	host := ep.host
	if a.baseURL != "" {
		host = a.baseURL
	}

	query := url.Values{}
	query.Set("folderId", folder)
	query.Set("pageSize", pageSize)
	if apiToken != "" {
		query.Set("pageToken", apiToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+ep.path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", providers.Transient(domain.ProviderYandex, resourceType, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", providers.Transient(domain.ProviderYandex, resourceType, "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", classifyStatus(resp.StatusCode, string(body), resourceType)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", providers.Transient(domain.ProviderYandex, resourceType, "malformed list response", err)
	}

	var items []json.RawMessage
	if raw, ok := payload[ep.key]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, "", providers.Transient(domain.ProviderYandex, resourceType, "malformed list response", err)
		}
	}

	var next string
	if raw, ok := payload["nextPageToken"]; ok {
		_ = json.Unmarshal(raw, &next)
	}
	return items, next, nil
}

func classifyStatus(status int, body string, resourceType domain.ResourceType) error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized:
		return providers.SessionExpired(domain.ProviderYandex, resourceType, err)
	case retryableStatus(status):
		return providers.Transient(domain.ProviderYandex, resourceType, http.StatusText(status), err)
	default:
		return providers.Unavailable(domain.ProviderYandex, resourceType, http.StatusText(status), err)
	}
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 && status != http.StatusNotImplemented
}
