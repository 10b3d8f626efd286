package search

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// BrazilStates lists the state codes accepted as profile region filters.
var BrazilStates = []string{
	"AC", "AL", "AP", "AM", "BA", "CE", "DF", "ES", "GO", "MA", "MT", "MS",
	"MG", "PA", "PB", "PR", "PE", "PI", "RJ", "RN", "RS", "RO", "RR", "SC",
	"SP", "SE", "TO",
}

// Registry holds the configuration for the upstream data sources.
type Registry struct {
	Sources  map[string]SourceConfig `yaml:"sources"`
	Defaults struct {
		Modalities []int `yaml:"modalities"`
	} `yaml:"defaults"`
	Modalities map[int]string `yaml:"modalities"`
}

// SourceConfig defines a single upstream API.
type SourceConfig struct {
	Name            string `yaml:"name"`
	BaseURL         string `yaml:"base_url"`
	PageSize        int    `yaml:"page_size"`
	MaxPages        int    `yaml:"max_pages"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	PageDelayMS     int    `yaml:"page_delay_ms"`
	ModalityDelayMS int    `yaml:"modality_delay_ms"`
}

// LoadRegistry parses the embedded source registry.
func LoadRegistry() (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded sources.yaml: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing sources.yaml: %w", err)
	}

	for id, src := range reg.Sources {
		if src.BaseURL == "" {
			return nil, fmt.Errorf("source %q missing base_url", id)
		}
	}

	return &reg, nil
}

// Source returns the configuration for a source id, with zero value defaults
// filled in.
func (r *Registry) Source(id string) SourceConfig {
	src := r.Sources[id]
	if src.PageSize == 0 {
		src.PageSize = 50
	}
	if src.MaxPages == 0 {
		src.MaxPages = 3
	}
	if src.TimeoutSeconds == 0 {
		src.TimeoutSeconds = 30
	}
	return src
}

// DefaultModalities returns the modality codes queried when a profile has no
// modality restriction.
func (r *Registry) DefaultModalities() []int {
	if len(r.Defaults.Modalities) == 0 {
		return []int{1, 2, 6, 7}
	}
	return r.Defaults.Modalities
}

// ModalityName resolves a Lei 14.133 modality code to its display name.
func (r *Registry) ModalityName(code int) string {
	return r.Modalities[code]
}
