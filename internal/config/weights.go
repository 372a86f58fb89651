package config

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv2 "gopkg.in/yaml.v2"
)

// WeightsConfig represents the provider weight profile file. Profiles let
// operators switch between historical reliability scores and a flat profile
// without touching the main configuration.
type WeightsConfig struct {
	Active   string                   `yaml:"active_profile"`
	Profiles map[string]WeightProfile `yaml:"profiles"`
}

// WeightProfile represents one named set of per-provider weights.
type WeightProfile struct {
	Name        string                     `yaml:"name"`
	Description string                     `yaml:"description"`
	Providers   map[string]ProviderWeights `yaml:"providers"`
}

// ProviderWeights carries the scores applied by the reliability weighting
// stage and seeded onto the providers table.
type ProviderWeights struct {
	Reliability float64 `yaml:"reliability"`  // Historical success rate (0.00-1.00)
	DataQuality int     `yaml:"data_quality"` // Catalog completeness score (0-100)
}

// LoadWeightsConfig loads provider weight profiles from file.
func LoadWeightsConfig(configPath string) (*WeightsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights config: %w", err)
	}

	var config WeightsConfig
	if err := yamlv2.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse weights YAML: %w", err)
	}

	return &config, nil
}

// SaveWeightsConfig saves provider weight profiles to file.
func SaveWeightsConfig(config *WeightsConfig, configPath string) error {
	data, err := yamlv2.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal weights config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write weights config: %w", err)
	}

	return nil
}

// GetActiveProfile returns the currently active weight profile.
func (wc *WeightsConfig) GetActiveProfile() (*WeightProfile, error) {
	if wc.Active == "" {
		return nil, fmt.Errorf("no active profile set")
	}

	profile, exists := wc.Profiles[wc.Active]
	if !exists {
		return nil, fmt.Errorf("active profile '%s' not found", wc.Active)
	}

	return &profile, nil
}

// GetProviderWeights returns the weights for a provider slug, falling back
// to neutral values for providers the profile does not mention.
func (wp *WeightProfile) GetProviderWeights(slug string) ProviderWeights {
	if weights, exists := wp.Providers[slug]; exists {
		return weights
	}
	return ProviderWeights{Reliability: 1.0, DataQuality: 50}
}

// ValidateProfile validates a weight profile for consistency.
func (wp *WeightProfile) ValidateProfile() []string {
	var errors []string

	if len(wp.Providers) == 0 {
		errors = append(errors, "Profile has no provider entries")
	}

	for slug, weights := range wp.Providers {
		if weights.Reliability < 0.0 || weights.Reliability > 1.0 {
			errors = append(errors, fmt.Sprintf("Provider %s: reliability %.2f outside [0.00, 1.00] range", slug, weights.Reliability))
		}
		if weights.DataQuality < 0 || weights.DataQuality > 100 {
			errors = append(errors, fmt.Sprintf("Provider %s: data quality %d outside [0, 100] range", slug, weights.DataQuality))
		}
	}

	return errors
}

// GetDefaultWeightsConfig returns the built-in weight profiles. The baseline
// profile encodes each provider's historical error rate (sport-direct ~1%,
// outdoor-pro ~5%, dag-spor ~15%, alpine-gear ~30%).
func GetDefaultWeightsConfig() *WeightsConfig {
	return &WeightsConfig{
		Active: "baseline",
		Profiles: map[string]WeightProfile{
			"baseline": {
				Name:        "Baseline",
				Description: "Weights derived from historical provider error rates",
				Providers: map[string]ProviderWeights{
					"sport-direct": {Reliability: 0.99, DataQuality: 95},
					"outdoor-pro":  {Reliability: 0.95, DataQuality: 88},
					"dag-spor":     {Reliability: 0.85, DataQuality: 72},
					"alpine-gear":  {Reliability: 0.70, DataQuality: 60},
				},
			},
			"equal_weight": {
				Name:        "Equal Weight",
				Description: "Neutral weights for comparing raw provider output",
				Providers: map[string]ProviderWeights{
					"sport-direct": {Reliability: 1.0, DataQuality: 100},
					"outdoor-pro":  {Reliability: 1.0, DataQuality: 100},
					"dag-spor":     {Reliability: 1.0, DataQuality: 100},
					"alpine-gear":  {Reliability: 1.0, DataQuality: 100},
				},
			},
		},
	}
}

// GetWeightsConfigPath returns the default path for the weights file.
func GetWeightsConfigPath() string {
	return filepath.Join("config", "provider_weights.yaml")
}
