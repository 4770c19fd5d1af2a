package aws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
)

type mockEC2 struct {
	mock.Mock
}

func (m *mockEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeInstancesOutput)
	return out, args.Error(1)
}

func (m *mockEC2) DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeVolumesOutput)
	return out, args.Error(1)
}

func (m *mockEC2) DescribeSnapshots(ctx context.Context, params *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeSnapshotsOutput)
	return out, args.Error(1)
}

func (m *mockEC2) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeImagesOutput)
	return out, args.Error(1)
}

func (m *mockEC2) DescribeAddresses(ctx context.Context, params *ec2.DescribeAddressesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ec2.DescribeAddressesOutput)
	return out, args.Error(1)
}

type mockRDS struct {
	mock.Mock
}

func (m *mockRDS) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*rds.DescribeDBInstancesOutput)
	return out, args.Error(1)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.ListBucketsOutput)
	return out, args.Error(1)
}

func newTestAdapter(t *testing.T, perRegion map[string]Clients) *Adapter {
	t.Helper()
	a := New()
	a.loadConfig = func(_ context.Context, profile string) (awssdk.Config, awssdk.Credentials, error) {
		return awssdk.Config{Region: "us-east-1"}, awssdk.Credentials{
			AccessKeyID: "AKIA" + profile,
			CanExpire:   true,
			Expires:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		}, nil
	}
	a.newClients = func(_ awssdk.Config, region string) Clients {
		c, ok := perRegion[region]
		require.True(t, ok, "unexpected region %s", region)
		return c
	}
	return a
}

func TestAdapter_Authenticate(t *testing.T) {
	a := newTestAdapter(t, nil)

	sess, err := a.Authenticate(context.Background(), domain.CredentialHandle{Source: "profile", Value: "prod"})
	require.NoError(t, err)
	assert.Equal(t, "AKIAprod", sess.Token)
	assert.Equal(t, 2030, sess.ExpiresAt.Year())
}

func TestAdapter_ListInstancesAcrossRegions(t *testing.T) {
	east, west := &mockEC2{}, &mockEC2{}
	a := newTestAdapter(t, map[string]Clients{
		"us-east-1": {EC2: east},
		"eu-west-1": {EC2: west},
	})
	_, err := a.Authenticate(context.Background(), domain.CredentialHandle{Source: "env"})
	require.NoError(t, err)

	east.On("DescribeInstances", mock.Anything, &ec2.DescribeInstancesInput{}).Return(&ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: []types.Instance{{
			InstanceId:   awssdk.String("i-1"),
			InstanceType: types.InstanceTypeT3Micro,
			CpuOptions:   &types.CpuOptions{CoreCount: awssdk.Int32(1), ThreadsPerCore: awssdk.Int32(2)},
		}}}},
		NextToken: awssdk.String("t2"),
	}, nil).Once()
	east.On("DescribeInstances", mock.Anything, &ec2.DescribeInstancesInput{NextToken: awssdk.String("t2")}).Return(&ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: []types.Instance{{InstanceId: awssdk.String("i-2")}}}},
	}, nil).Once()
	west.On("DescribeInstances", mock.Anything, &ec2.DescribeInstancesInput{}).Return(&ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: []types.Instance{{InstanceId: awssdk.String("i-3")}}}},
	}, nil).Once()

	scope := domain.Scope{Regions: []string{"us-east-1", "eu-west-1"}}
	var ids []string
	token := ""
	for {
		page, err := a.ListPage(context.Background(), providers.Session{}, scope, domain.ResourceComputeInstance, token)
		require.NoError(t, err)
		for _, e := range page.Entries {
			ids = append(ids, e.ID)
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	assert.Equal(t, []string{"i-1", "i-2", "i-3"}, ids)
	east.AssertExpectations(t)
	west.AssertExpectations(t)
}

func TestAdapter_FlattensFields(t *testing.T) {
	db := &mockRDS{}
	a := newTestAdapter(t, map[string]Clients{"us-east-1": {RDS: db}})
	_, err := a.Authenticate(context.Background(), domain.CredentialHandle{})
	require.NoError(t, err)

	db.On("DescribeDBInstances", mock.Anything, mock.Anything).Return(&rds.DescribeDBInstancesOutput{
		DBInstances: []rdstypes.DBInstance{{
			DBInstanceIdentifier: awssdk.String("orders"),
			DBInstanceClass:      awssdk.String("db.t3.medium"),
			AllocatedStorage:     awssdk.Int32(100),
		}},
	}, nil)

	page, err := a.ListPage(context.Background(), providers.Session{}, domain.Scope{}, domain.ResourceDatabaseCluster, "")
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "orders", page.Entries[0].ID)
	assert.Equal(t, "db.t3.medium", page.Entries[0].Fields["DBInstanceClass"])
	assert.Equal(t, json.Number("100"), page.Entries[0].Fields["AllocatedStorage"])
	assert.Equal(t, "us-east-1", page.Entries[0].Fields["Region"])
	assert.Empty(t, page.NextToken)
}

func TestAdapter_GlobalTypesListedOnce(t *testing.T) {
	store := &mockS3{}
	a := newTestAdapter(t, map[string]Clients{"us-east-1": {S3: store}})
	_, err := a.Authenticate(context.Background(), domain.CredentialHandle{})
	require.NoError(t, err)

	store.On("ListBuckets", mock.Anything, mock.Anything).Return(&s3.ListBucketsOutput{}, nil).Once()

	page, err := a.ListPage(context.Background(), providers.Session{},
		domain.Scope{Regions: []string{"us-east-1", "eu-west-1"}}, domain.ResourceObjectBucket, "")
	require.NoError(t, err)
	assert.Empty(t, page.NextToken)
	store.AssertExpectations(t)
}

func TestAdapter_ListPageScopeErrorsAreNotRetried(t *testing.T) {
	t.Run("before authentication", func(t *testing.T) {
		a := newTestAdapter(t, nil)
		_, err := a.ListPage(context.Background(), providers.Session{}, domain.Scope{}, domain.ResourceBlockVolume, "")
		assert.True(t, providers.IsCategory(err, providers.CategoryUnavailable))
	})

	t.Run("no default region", func(t *testing.T) {
		a := newTestAdapter(t, nil)
		a.loadConfig = func(context.Context, string) (awssdk.Config, awssdk.Credentials, error) {
			return awssdk.Config{}, awssdk.Credentials{AccessKeyID: "AKIA"}, nil
		}
		_, err := a.Authenticate(context.Background(), domain.CredentialHandle{})
		require.NoError(t, err)

		_, err = a.ListPage(context.Background(), providers.Session{}, domain.Scope{}, domain.ResourceBlockVolume, "")
		assert.True(t, providers.IsCategory(err, providers.CategoryUnavailable))
	})

	t.Run("token outside scope", func(t *testing.T) {
		a := newTestAdapter(t, nil)
		_, err := a.ListPage(context.Background(), providers.Session{},
			domain.Scope{Regions: []string{"us-east-1"}}, domain.ResourceBlockVolume, "eu-west-1|t2")
		assert.True(t, providers.IsCategory(err, providers.CategoryUnavailable))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code     string
		category providers.Category
	}{
		{"AuthFailure", providers.CategoryAuthentication},
		{"ExpiredToken", providers.CategorySessionExpired},
		{"UnauthorizedOperation", providers.CategoryUnavailable},
		{"RequestLimitExceeded", providers.CategoryTransient},
		{"SomethingElse", providers.CategoryTransient},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := classify(&smithy.GenericAPIError{Code: tt.code}, domain.ResourceComputeInstance)
			assert.True(t, providers.IsCategory(err, tt.category))
		})
	}
}
