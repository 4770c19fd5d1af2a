package aws

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
)

var supportedTypes = []domain.ResourceType{
	domain.ResourceComputeInstance,
	domain.ResourceBlockVolume,
	domain.ResourceDiskSnapshot,
	domain.ResourceImage,
	domain.ResourceReservedAddress,
	domain.ResourceDatabaseCluster,
	domain.ResourceObjectBucket,
}

// global types are listed once, from the first scope region.
var globalTypes = map[domain.ResourceType]bool{
	domain.ResourceObjectBucket: true,
}

type Adapter struct {
	loadConfig ConfigLoader
	newClients ClientFactory

	mu      sync.Mutex
	cfg     *awssdk.Config
	regions map[string]Clients
}

func New() *Adapter {
	return &Adapter{
		loadConfig: LoadConfig,
		newClients: NewClients,
		regions:    make(map[string]Clients),
	}
}

func Factory(_ context.Context, conn domain.Connection) (providers.Adapter, error) {
	if conn.Provider != domain.ProviderAWS {
		return nil, fmt.Errorf("connection %s is not an AWS connection", conn.ID)
	}
	return New(), nil
}

func (a *Adapter) Kind() domain.ProviderKind {
	return domain.ProviderAWS
}

func (a *Adapter) ResourceTypes() []domain.ResourceType {
	return supportedTypes
}

// Authenticate loads the shared profile named by the credential handle.
// The session token is the access key id, never the secret.
func (a *Adapter) Authenticate(ctx context.Context, credential domain.CredentialHandle) (providers.Session, error) {
	profile := ""
	if credential.Source == "profile" {
		profile = credential.Value
	}

	cfg, creds, err := a.loadConfig(ctx, profile)
	if err != nil {
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderAWS, "failed to load credentials", err)
	}

	a.mu.Lock()
	a.cfg = &cfg
	a.regions = make(map[string]Clients)
	a.mu.Unlock()

	sess := providers.Session{Token: creds.AccessKeyID}
	if creds.CanExpire {
		sess.ExpiresAt = creds.Expires
	}
	return sess, nil
}

func (a *Adapter) ListPage(
	ctx context.Context,
	_ providers.Session,
	scope domain.Scope,
	resourceType domain.ResourceType,
	pageToken string,
) (providers.Page, error) {
	regions, err := a.scopeRegions(scope)
	if err != nil {
		return providers.Page{}, providers.Unavailable(domain.ProviderAWS, resourceType, "invalid scope", err)
	}
	if globalTypes[resourceType] {
		regions = regions[:1]
	}

	region, sdkToken := splitToken(pageToken, regions[0])
	idx := slices.Index(regions, region)
	if idx < 0 {
		return providers.Page{}, providers.Unavailable(domain.ProviderAWS, resourceType, "invalid page token",
			fmt.Errorf("page token refers to region %q outside scope", region))
	}

	clients := a.clients(region)
	entries, next, err := a.list(ctx, clients, resourceType, sdkToken)
	if err != nil {
		return providers.Page{}, classify(err, resourceType)
	}
	for i := range entries {
		entries[i].Fields["Region"] = region
	}

	page := providers.Page{Entries: entries}
	switch {
	case next != "":
		page.NextToken = region + "|" + next
	case idx+1 < len(regions):
		page.NextToken = regions[idx+1] + "|"
	}
	return page, nil
}

func (a *Adapter) list(ctx context.Context, clients Clients, resourceType domain.ResourceType, token string) ([]domain.RawEntry, string, error) {
	switch resourceType {
	case domain.ResourceComputeInstance:
		out, err := clients.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: optional(token)})
		if err != nil {
			return nil, "", err
		}
		var records []any
		for _, reservation := range out.Reservations {
			for _, instance := range reservation.Instances {
				records = append(records, instance)
			}
		}
		entries, err := toEntries(records, "InstanceId")
		return entries, awssdk.ToString(out.NextToken), err

	case domain.ResourceBlockVolume:
		out, err := clients.EC2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{NextToken: optional(token)})
		if err != nil {
			return nil, "", err
		}
		entries, err := toEntries(anySlice(out.Volumes), "VolumeId")
		return entries, awssdk.ToString(out.NextToken), err

	case domain.ResourceDiskSnapshot:
		out, err := clients.EC2.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{
			OwnerIds:  []string{"self"},
			NextToken: optional(token),
		})
		if err != nil {
			return nil, "", err
		}
		entries, err := toEntries(anySlice(out.Snapshots), "SnapshotId")
		return entries, awssdk.ToString(out.NextToken), err

	case domain.ResourceImage:
		out, err := clients.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
			Owners:    []string{"self"},
			NextToken: optional(token),
		})
		if err != nil {
			return nil, "", err
		}
		entries, err := toEntries(anySlice(out.Images), "ImageId")
		return entries, awssdk.ToString(out.NextToken), err

	case domain.ResourceReservedAddress:
		out, err := clients.EC2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
		if err != nil {
			return nil, "", err
		}
		entries, err := toEntries(anySlice(out.Addresses), "AllocationId", "PublicIp")
		return entries, "", err

	case domain.ResourceDatabaseCluster:
		out, err := clients.RDS.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: optional(token)})
		if err != nil {
			return nil, "", err
		}
		entries, err := toEntries(anySlice(out.DBInstances), "DBInstanceIdentifier")
		return entries, awssdk.ToString(out.Marker), err

	case domain.ResourceObjectBucket:
		out, err := clients.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
		if err != nil {
			return nil, "", err
		}
		entries, err := toEntries(anySlice(out.Buckets), "Name")
		return entries, "", err

	default:
		return nil, "", providers.Unavailable(domain.ProviderAWS, resourceType, "resource type not supported", nil)
	}
}

func (a *Adapter) scopeRegions(scope domain.Scope) ([]string, error) {
	if len(scope.Regions) > 0 {
		return scope.Regions, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg == nil {
		return nil, fmt.Errorf("aws adapter used before authentication")
	}
	if a.cfg.Region == "" {
		return nil, fmt.Errorf("no regions in scope and no default region configured")
	}
	return []string{a.cfg.Region}, nil
}

func (a *Adapter) clients(region string) Clients {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.regions[region]; ok {
		return c
	}
	var cfg awssdk.Config
	if a.cfg != nil {
		cfg = *a.cfg
	}
	c := a.newClients(cfg, region)
	a.regions[region] = c
	return c
}

func toEntries(records []any, idFields ...string) ([]domain.RawEntry, error) {
	entries := make([]domain.RawEntry, 0, len(records))
	for _, record := range records {
		fields, err := providers.Flatten(record)
		if err != nil {
			return nil, err
		}
		entry := domain.RawEntry{Fields: fields}
		for _, f := range idFields {
			if id, ok := fields[f].(string); ok && id != "" {
				entry.ID = id
				break
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func anySlice[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

func optional(token string) *string {
	if token == "" {
		return nil
	}
	return awssdk.String(token)
}

func splitToken(token, defaultRegion string) (string, string) {
	if token == "" {
		return defaultRegion, ""
	}
	region, rest, _ := strings.Cut(token, "|")
	return region, rest
}
