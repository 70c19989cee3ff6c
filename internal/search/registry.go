package search

import (
	"embed"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed config/providers.yaml
var providersYAML embed.FS

// Registry holds the configuration for all opportunity providers.
type Registry struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig defines a single registry integration.
type ProviderConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"` // "grantsgov", "sam", "html"
	APIKey  string `yaml:"api_key,omitempty"`
	Active  bool   `yaml:"active"`
	ListURL string `yaml:"list_url,omitempty"`

	// For the html kind
	Selectors ListingSelectors `yaml:"selectors,omitempty"`
}

// LoadRegistry reads the embedded providers.yaml, or the given file when a
// path is supplied, for local experimentation.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = providersYAML.ReadFile("config/providers.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("reading provider registry: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parsing provider registry: %w", err)
	}
	return &reg, nil
}

// BuildProviders instantiates every active provider in the registry.
// Unknown kinds are skipped with a warning so a stale config entry can't
// take discovery down.
func BuildProviders(reg *Registry, logger *zap.Logger) []Provider {
	if logger == nil {
		logger = zap.NewNop()
	}

	var providers []Provider
	for _, cfg := range reg.Providers {
		if !cfg.Active {
			continue
		}
		switch cfg.Kind {
		case "grantsgov":
			providers = append(providers, NewGrantsGovProvider())
		case "sam":
			providers = append(providers, NewSAMProvider(cfg.APIKey))
		case "html":
			providers = append(providers, NewHTMLProvider(cfg.Name, cfg.ListURL, cfg.Selectors))
		default:
			logger.Warn("unknown provider kind in registry",
				zap.String("id", cfg.ID),
				zap.String("kind", cfg.Kind))
		}
	}
	return providers
}
