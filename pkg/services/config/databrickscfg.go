package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// ProfileConnections turns every complete profile of a .databrickscfg file
// into a Databricks connection named "databricks-<profile>".
func ProfileConnections(path string) ([]domain.Connection, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	var conns []domain.Connection
	for _, section := range cfg.Sections() {
		if section.Key("host").String() == "" || section.Key("token").String() == "" {
			continue
		}
		conns = append(conns, domain.Connection{
			ID:       "databricks-" + section.Name(),
			Provider: domain.ProviderDatabricks,
			Scope: domain.Scope{Extra: map[string]string{
				"config_file": path,
				"http_path":   section.Key("http_path").String(),
			}},
			Credential: domain.CredentialHandle{Source: "profile", Value: section.Name()},
			Limits:     domain.DefaultLimits(),
		})
	}
	return conns, nil
}
