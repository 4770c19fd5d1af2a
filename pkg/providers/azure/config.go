package azure

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"gopkg.in/ini.v1"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

const (
	DefaultProfile  = "default"
	ManagementScope = "https://management.azure.com/.default"
)

type Config struct {
	SubscriptionID string
	TenantID       string
	ClientID       string
}

// LoadConfig reads a profile section of an INI file, ~/.azure/config by default.
func LoadConfig(path, profile string) (*Config, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("unable to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".azure", "config")
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load Azure config file: %w", err)
	}

	section, err := cfg.GetSection(profile)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found in Azure config: %w", profile, err)
	}

	config := &Config{
		SubscriptionID: section.Key("subscription").String(),
		TenantID:       section.Key("tenant").String(),
		ClientID:       section.Key("client_id").String(),
	}

	if config.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription ID not found in profile %s", profile)
	}
	return config, nil
}

// NewCredential builds a token credential from a credential handle.
// Supported sources: cli (Azure CLI login), default (environment, managed
// identity, CLI chain) and profile (a section of ~/.azure/config naming the
// tenant to log in to through the CLI).
func NewCredential(handle domain.CredentialHandle) (azcore.TokenCredential, error) {
	switch handle.Source {
	case "", "default":
		return azidentity.NewDefaultAzureCredential(nil)
	case "cli":
		return azidentity.NewAzureCLICredential(nil)
	case "profile":
		cfg, err := LoadConfig("", handle.Value)
		if err != nil {
			return nil, err
		}
		return azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{TenantID: cfg.TenantID})
	default:
		return nil, fmt.Errorf("unsupported azure credential source %q", handle.Source)
	}
}
