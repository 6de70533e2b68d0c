// Package config loads the simulator's configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/merkle"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/observability"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
)

// Environment overrides.
const (
	EnvSeed     = "HELM_SIM_SEED"
	EnvLogLevel = "HELM_SIM_LOG_LEVEL"
	EnvStoreDSN = "HELM_SIM_STORE_DSN"
	EnvHasher   = "HELM_SIM_HASHER"
)

// Config holds simulator configuration.
type Config struct {
	Seed         uint32               `yaml:"seed"`
	Settings     policy.Settings      `yaml:"settings"`
	Hasher       string               `yaml:"hasher"`
	MerkleWindow int                  `yaml:"merkle_window"`
	Signer       SignerConfig         `yaml:"signer"`
	Log          LogConfig            `yaml:"log"`
	Store        StoreConfig          `yaml:"store"`
	Telemetry    observability.Config `yaml:"telemetry"`

	// TextCatalog is an option-text YAML file; empty selects the built-in one.
	TextCatalog string `yaml:"text_catalog"`
}

// SignerConfig selects the block signature scheme.
type SignerConfig struct {
	Mode string `yaml:"mode"` // "placeholder" | "ed25519"
	Seed string `yaml:"seed"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "text"
}

// StoreConfig selects the snapshot store. An empty driver keeps sessions in
// memory only.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "", "sqlite", "postgres", "redis"
	DSN    string `yaml:"dsn"`
}

// Default returns the configuration of the reference scenario.
func Default() *Config {
	return &Config{
		Seed: 42,
		Settings: policy.Settings{
			Persona:   "founder",
			Stress:    policy.StressCalm,
			Autonomy:  policy.AutonomyExecuteWithApproval,
			BudgetCap: budget.MustParse("5.00"),
		},
		Hasher:       "sha256",
		MerkleWindow: merkle.DefaultWindow,
		Signer:       SignerConfig{Mode: "placeholder"},
		Log:          LogConfig{Level: "info", Format: "text"},
		Telemetry:    observability.DefaultConfig(),
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvSeed, err)
		}
		c.Seed = uint32(seed)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvHasher); v != "" {
		c.Hasher = v
	}
	return nil
}

// Validate rejects unknown enum values and non-positive windows.
func (c *Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("config: settings: %w", err)
	}
	if _, err := digest.ByName(c.Hasher); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MerkleWindow <= 0 {
		return fmt.Errorf("config: merkle_window must be positive, got %d", c.MerkleWindow)
	}
	switch c.Signer.Mode {
	case "", "placeholder":
	case "ed25519":
		if c.Signer.Seed == "" {
			return fmt.Errorf("config: ed25519 signer requires a seed")
		}
	default:
		return fmt.Errorf("config: unknown signer mode %q", c.Signer.Mode)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	switch c.Store.Driver {
	case "":
	case "sqlite", "postgres", "redis":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store driver %q requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// NewHasher returns the configured hash primitive.
func (c *Config) NewHasher() (digest.Hasher, error) {
	return digest.ByName(c.Hasher)
}

// NewSigner returns the configured block signer.
func (c *Config) NewSigner(h digest.Hasher) (digest.Signer, error) {
	if c.Signer.Mode == "ed25519" {
		s, err := digest.NewEd25519Signer([]byte(c.Signer.Seed), "helm-sim block signer")
		if err != nil {
			return nil, fmt.Errorf("config: ed25519 signer: %w", err)
		}
		return s, nil
	}
	return digest.Placeholder(h), nil
}
