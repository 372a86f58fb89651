package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultWeightsConfig(t *testing.T) {
	wc := GetDefaultWeightsConfig()

	profile, err := wc.GetActiveProfile()
	require.NoError(t, err)
	assert.Equal(t, "Baseline", profile.Name)
	assert.Empty(t, profile.ValidateProfile())

	// Baseline ordering follows historical error rates
	assert.Greater(t,
		profile.Providers["sport-direct"].Reliability,
		profile.Providers["alpine-gear"].Reliability)
}

func TestWeightsConfig_GetActiveProfile(t *testing.T) {
	wc := &WeightsConfig{Profiles: map[string]WeightProfile{}}

	_, err := wc.GetActiveProfile()
	assert.ErrorContains(t, err, "no active profile")

	wc.Active = "missing"
	_, err = wc.GetActiveProfile()
	assert.ErrorContains(t, err, "not found")
}

func TestWeightProfile_GetProviderWeights(t *testing.T) {
	profile := WeightProfile{
		Providers: map[string]ProviderWeights{
			"dag-spor": {Reliability: 0.85, DataQuality: 72},
		},
	}

	assert.Equal(t, 0.85, profile.GetProviderWeights("dag-spor").Reliability)

	// Unknown providers get neutral weights
	fallback := profile.GetProviderWeights("unknown-shop")
	assert.Equal(t, 1.0, fallback.Reliability)
	assert.Equal(t, 50, fallback.DataQuality)
}

func TestWeightProfile_ValidateProfile(t *testing.T) {
	profile := WeightProfile{
		Name: "Broken",
		Providers: map[string]ProviderWeights{
			"a": {Reliability: 1.5, DataQuality: 50},
			"b": {Reliability: 0.9, DataQuality: 120},
		},
	}

	errs := profile.ValidateProfile()
	assert.Len(t, errs, 2)

	healthy := WeightProfile{Providers: map[string]ProviderWeights{
		"a": {Reliability: 0.9, DataQuality: 80},
	}}
	assert.Empty(t, healthy.ValidateProfile())

	empty := WeightProfile{Name: "Empty"}
	assert.Len(t, empty.ValidateProfile(), 1)
}

func TestWeightsConfig_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider_weights.yaml")
	original := GetDefaultWeightsConfig()

	require.NoError(t, SaveWeightsConfig(original, path))

	loaded, err := LoadWeightsConfig(path)
	require.NoError(t, err)
	assert.Equal(t, original.Active, loaded.Active)
	assert.Equal(t,
		original.Profiles["baseline"].Providers["outdoor-pro"],
		loaded.Profiles["baseline"].Providers["outdoor-pro"])
}

func TestLoadWeightsConfig_MissingFile(t *testing.T) {
	_, err := LoadWeightsConfig("/nonexistent/weights.yaml")
	assert.ErrorContains(t, err, "failed to read weights config")
}
