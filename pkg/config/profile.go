package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
)

// Profile is a named settings preset, e.g. a persona with its usual
// autonomy and budget.
type Profile struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Settings    policy.Settings `yaml:"settings" json:"settings"`
}

// LoadProfile loads profile_<name>.yaml from dir.
func LoadProfile(dir, name string) (*Profile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(dir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}
	profile, err := parseProfile(data, name)
	if err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}
	return profile, nil
}

// LoadAllProfiles loads every profile_*.yaml in dir, keyed by name.
func LoadAllProfiles(dir string) (map[string]*Profile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*Profile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		base := filepath.Base(path)
		name := strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		profile, err := parseProfile(data, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		profiles[profile.Name] = profile
	}
	return profiles, nil
}

func parseProfile(data []byte, name string) (*Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	if profile.Name == "" {
		profile.Name = name
	}
	if profile.Settings.Persona == "" {
		profile.Settings.Persona = profile.Name
	}
	if err := profile.Settings.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Apply overlays the profile's settings onto c.
func (p *Profile) Apply(c *Config) {
	c.Settings = p.Settings
}
