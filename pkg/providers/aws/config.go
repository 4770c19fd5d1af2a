package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

const (
	DefaultRegion = "us-east-1" // Default region if not specified in AWS profile
)

type ConfigLoader func(ctx context.Context, profile string) (awssdk.Config, awssdk.Credentials, error)

// LoadConfig loads the shared profile and retrieves credentials once so an
// invalid profile fails at authentication time.
func LoadConfig(ctx context.Context, profile string) (awssdk.Config, awssdk.Credentials, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithDefaultRegion(DefaultRegion),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awssdk.Config{}, awssdk.Credentials{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return awssdk.Config{}, awssdk.Credentials{}, fmt.Errorf("invalid AWS credentials for profile %s: %w", profile, err)
	}

	return awsCfg, creds, nil
}
