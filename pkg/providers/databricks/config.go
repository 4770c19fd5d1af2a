package databricks

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

type Profile struct {
	Name  string
	Host  string
	Token string
}

// Profiles reads workspace profiles from a .databrickscfg file.
type Profiles struct {
	cfg *ini.File
}

func DefaultConfigPath() (string, error) {
	if path := os.Getenv("DATABRICKS_CONFIG_FILE"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".databrickscfg"), nil
}

func LoadProfiles(path string) (*Profiles, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load databricks config %s: %w", path, err)
	}
	return &Profiles{cfg: cfg}, nil
}

func (p *Profiles) Names() []string {
	var profiles []string
	for _, section := range p.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles
}

func (p *Profiles) Get(name string) (Profile, error) {
	section, err := p.cfg.GetSection(name)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s not found", name)
	}

	profile := Profile{
		Name:  name,
		Host:  section.Key("host").String(),
		Token: section.Key("token").String(),
	}
	if profile.Host == "" || profile.Token == "" {
		return Profile{}, fmt.Errorf("profile %s must define host and token", name)
	}
	return profile, nil
}
