package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
)

const (
	moduleName    = "inventory-atlas"
	moduleVersion = "v1"
)

type endpoint struct {
	provider   string
	apiVersion string
}

var endpoints = map[domain.ResourceType]endpoint{
	domain.ResourceComputeInstance: {"Microsoft.Compute/virtualMachines", "2024-03-01"},
	domain.ResourceBlockVolume:     {"Microsoft.Compute/disks", "2023-10-02"},
	domain.ResourceDiskSnapshot:    {"Microsoft.Compute/snapshots", "2023-10-02"},
	domain.ResourceImage:           {"Microsoft.Compute/images", "2024-03-01"},
	domain.ResourceReservedAddress: {"Microsoft.Network/publicIPAddresses", "2023-11-01"},
	domain.ResourceLoadBalancer:    {"Microsoft.Network/loadBalancers", "2023-11-01"},
	domain.ResourceDNSZone:         {"Microsoft.Network/dnszones", "2018-05-01"},
	domain.ResourceRegistry:        {"Microsoft.ContainerRegistry/registries", "2023-07-01"},
}

var supportedTypes = []domain.ResourceType{
	domain.ResourceComputeInstance,
	domain.ResourceBlockVolume,
	domain.ResourceDiskSnapshot,
	domain.ResourceImage,
	domain.ResourceReservedAddress,
	domain.ResourceLoadBalancer,
	domain.ResourceDNSZone,
	domain.ResourceRegistry,
}

type getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

type CredentialFactory func(handle domain.CredentialHandle) (azcore.TokenCredential, error)

type Adapter struct {
	newCredential CredentialFactory
	newGetter     func(cred azcore.TokenCredential) (getter, string, error)

	mu       sync.Mutex
	client   getter
	endpoint string
}

func New() *Adapter {
	return &Adapter{
		newCredential: NewCredential,
		newGetter:     newARMGetter,
	}
}

func Factory(_ context.Context, conn domain.Connection) (providers.Adapter, error) {
	if conn.Provider != domain.ProviderAzure {
		return nil, fmt.Errorf("connection %s is not an Azure connection", conn.ID)
	}
	if conn.Scope.AccountID == "" {
		return nil, fmt.Errorf("connection %s: subscription id (scope.account_id) is required", conn.ID)
	}
	return New(), nil
}

func (a *Adapter) Kind() domain.ProviderKind {
	return domain.ProviderAzure
}

func (a *Adapter) ResourceTypes() []domain.ResourceType {
	return supportedTypes
}

func (a *Adapter) Authenticate(ctx context.Context, credential domain.CredentialHandle) (providers.Session, error) {
	cred, err := a.newCredential(credential)
	if err != nil {
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderAzure, "failed to build credential", err)
	}

	token, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{ManagementScope}})
	if err != nil {
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderAzure, "failed to acquire management token", err)
	}

	client, base, err := a.newGetter(cred)
	if err != nil {
		return providers.Session{}, fmt.Errorf("failed to create ARM client: %w", err)
	}

	a.mu.Lock()
	a.client = client
	a.endpoint = strings.TrimSuffix(base, "/")
	a.mu.Unlock()

	return providers.Session{Token: token.Token, ExpiresAt: token.ExpiresOn}, nil
}

type listResponse struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"nextLink"`
}

// ListPage lists one page of a subscription-wide collection. The page token
// is the nextLink returned by ARM.
func (a *Adapter) ListPage(
	ctx context.Context,
	_ providers.Session,
	scope domain.Scope,
	resourceType domain.ResourceType,
	pageToken string,
) (providers.Page, error) {
	ep, ok := endpoints[resourceType]
	if !ok {
		return providers.Page{}, providers.Unavailable(domain.ProviderAzure, resourceType, "resource type not supported", nil)
	}

	a.mu.Lock()
	client, base := a.client, a.endpoint
	a.mu.Unlock()
	if client == nil {
		return providers.Page{}, providers.SessionExpired(domain.ProviderAzure, resourceType, nil)
	}

	url := pageToken
	if url == "" {
		url = fmt.Sprintf("%s/subscriptions/%s/providers/%s?api-version=%s", base, scope.AccountID, ep.provider, ep.apiVersion)
	}

	body, err := client.Get(ctx, url)
	if err != nil {
		return providers.Page{}, classify(err, resourceType)
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return providers.Page{}, providers.Transient(domain.ProviderAzure, resourceType, "malformed list response", err)
	}

	page := providers.Page{NextToken: resp.NextLink}
	for _, raw := range resp.Value {
		fields, err := providers.DecodeFields(raw)
		if err != nil {
			return providers.Page{}, providers.Transient(domain.ProviderAzure, resourceType, "malformed resource", err)
		}
		id, _ := fields["id"].(string)
		page.Entries = append(page.Entries, domain.RawEntry{ID: id, Fields: fields})
	}
	return page, nil
}

func classify(err error, resourceType domain.ResourceType) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return providers.Transient(domain.ProviderAzure, resourceType, "request failed", err)
	}

	switch status := respErr.StatusCode; {
	case status == http.StatusUnauthorized:
		return providers.SessionExpired(domain.ProviderAzure, resourceType, err)
	case status == http.StatusForbidden,
		status == http.StatusNotFound,
		status == http.StatusBadRequest,
		status == http.StatusConflict && respErr.ErrorCode == "MissingSubscriptionRegistration":
		return providers.Unavailable(domain.ProviderAzure, resourceType, respErr.ErrorCode, err)
	default:
		return providers.Transient(domain.ProviderAzure, resourceType, fmt.Sprintf("status %d", status), err)
	}
}

type armGetter struct {
	client *arm.Client
}

func newARMGetter(cred azcore.TokenCredential) (getter, string, error) {
	client, err := arm.NewClient(moduleName, moduleVersion, cred, nil)
	if err != nil {
		return nil, "", err
	}
	return &armGetter{client: client}, client.Endpoint(), nil
}

func (g *armGetter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := runtime.NewRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	req.Raw().Header["Accept"] = []string{"application/json"}

	resp, err := g.client.Pipeline().Do(req)
	if err != nil {
		return nil, err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, runtime.NewResponseError(resp)
	}
	return runtime.Payload(resp)
}
