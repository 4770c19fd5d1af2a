package databricks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/apierr"
	"github.com/databricks/databricks-sdk-go/service/compute"
	"github.com/databricks/databricks-sdk-go/service/iam"
	"github.com/databricks/databricks-sdk-go/service/sql"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
)

var supportedTypes = []domain.ResourceType{
	domain.ResourceAnalyticsCluster,
	domain.ResourceSQLWarehouse,
}

type ClustersAPI interface {
	ListAll(ctx context.Context, request compute.ListClustersRequest) ([]compute.ClusterDetails, error)
}

type WarehousesAPI interface {
	ListAll(ctx context.Context, request sql.ListWarehousesRequest) ([]sql.EndpointInfo, error)
}

type CurrentUserAPI interface {
	Me(ctx context.Context) (*iam.User, error)
}

type Clients struct {
	Clusters    ClustersAPI
	Warehouses  WarehousesAPI
	CurrentUser CurrentUserAPI
}

type ClientFactory func(profile Profile) (Clients, error)

func NewClients(profile Profile) (Clients, error) {
	w, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:  profile.Host,
		Token: profile.Token,
	})
	if err != nil {
		return Clients{}, err
	}
	return Clients{
		Clusters:    w.Clusters,
		Warehouses:  w.Warehouses,
		CurrentUser: w.CurrentUser,
	}, nil
}

type Adapter struct {
	host       string
	configPath string
	newClients ClientFactory

	mu      sync.Mutex
	clients *Clients
}

func New(host, configPath string) *Adapter {
	return &Adapter{
		host:       host,
		configPath: configPath,
		newClients: NewClients,
	}
}

// Factory expects the workspace host in scope.extra.host when the credential
// is a bare token.
func Factory(_ context.Context, conn domain.Connection) (providers.Adapter, error) {
	if conn.Provider != domain.ProviderDatabricks {
		return nil, fmt.Errorf("connection %s is not a Databricks connection", conn.ID)
	}
	return New(conn.Scope.Extra["host"], conn.Scope.Extra["config_file"]), nil
}

func (a *Adapter) Kind() domain.ProviderKind {
	return domain.ProviderDatabricks
}

func (a *Adapter) ResourceTypes() []domain.ResourceType {
	return supportedTypes
}

func (a *Adapter) Authenticate(ctx context.Context, credential domain.CredentialHandle) (providers.Session, error) {
	profile, err := a.resolveProfile(credential)
	if err != nil {
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderDatabricks, "invalid credential", err)
	}

	clients, err := a.newClients(profile)
	if err != nil {
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderDatabricks, "failed to create workspace client", err)
	}

	if _, err := clients.CurrentUser.Me(ctx); err != nil {
		if classified := classify(err, ""); providers.IsCategory(classified, providers.CategoryTransient) {
			return providers.Session{}, classified
		}
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderDatabricks, "token rejected", err)
	}

	a.mu.Lock()
	a.clients = &clients
	a.mu.Unlock()

	return providers.Session{Token: profile.Host}, nil
}

func (a *Adapter) resolveProfile(credential domain.CredentialHandle) (Profile, error) {
	return ResolveProfile(credential, a.host, a.configPath)
}

// ResolveProfile turns a credential handle into workspace credentials: either
// a bare token for host, or a named .databrickscfg profile.
func ResolveProfile(credential domain.CredentialHandle, host, configPath string) (Profile, error) {
	switch credential.Source {
	case "token":
		if host == "" {
			return Profile{}, fmt.Errorf("workspace host is required for token credentials")
		}
		return Profile{Name: "token", Host: host, Token: credential.Value}, nil
	case "profile", "":
		path := configPath
		if path == "" {
			var err error
			if path, err = DefaultConfigPath(); err != nil {
				return Profile{}, err
			}
		}
		profiles, err := LoadProfiles(path)
		if err != nil {
			return Profile{}, err
		}
		name := credential.Value
		if name == "" {
			name = "DEFAULT"
		}
		return profiles.Get(name)
	default:
		return Profile{}, fmt.Errorf("unsupported databricks credential source %q", credential.Source)
	}
}

// ListPage returns whole listings; the SDK iterators already follow pagination.
func (a *Adapter) ListPage(
	ctx context.Context,
	_ providers.Session,
	_ domain.Scope,
	resourceType domain.ResourceType,
	_ string,
) (providers.Page, error) {
	a.mu.Lock()
	clients := a.clients
	a.mu.Unlock()
	if clients == nil {
		return providers.Page{}, providers.SessionExpired(domain.ProviderDatabricks, resourceType, nil)
	}

	var (
		records []any
		idField string
	)
	switch resourceType {
	case domain.ResourceAnalyticsCluster:
		clusters, err := clients.Clusters.ListAll(ctx, compute.ListClustersRequest{})
		if err != nil {
			return providers.Page{}, classify(err, resourceType)
		}
		for _, c := range clusters {
			records = append(records, c)
		}
		idField = "cluster_id"
	case domain.ResourceSQLWarehouse:
		warehouses, err := clients.Warehouses.ListAll(ctx, sql.ListWarehousesRequest{})
		if err != nil {
			return providers.Page{}, classify(err, resourceType)
		}
		for _, w := range warehouses {
			records = append(records, w)
		}
		idField = "id"
	default:
		return providers.Page{}, providers.Unavailable(domain.ProviderDatabricks, resourceType, "resource type not supported", nil)
	}

	page := providers.Page{}
	for _, record := range records {
		fields, err := providers.Flatten(record)
		if err != nil {
			return providers.Page{}, providers.Transient(domain.ProviderDatabricks, resourceType, "malformed record", err)
		}
		id, _ := fields[idField].(string)
		page.Entries = append(page.Entries, domain.RawEntry{ID: id, Fields: fields})
	}
	return page, nil
}

func classify(err error, resourceType domain.ResourceType) error {
	var apiErr *apierr.APIError
	if !errors.As(err, &apiErr) {
		return providers.Transient(domain.ProviderDatabricks, resourceType, "request failed", err)
	}

	switch status := apiErr.StatusCode; {
	case status == http.StatusUnauthorized:
		return providers.SessionExpired(domain.ProviderDatabricks, resourceType, err)
	case status == http.StatusForbidden, status == http.StatusNotFound, status == http.StatusNotImplemented:
		return providers.Unavailable(domain.ProviderDatabricks, resourceType, apiErr.ErrorCode, err)
	default:
		return providers.Transient(domain.ProviderDatabricks, resourceType, fmt.Sprintf("status %d", status), err)
	}
}
