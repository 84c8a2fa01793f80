// internal/config/pricing.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPricingFile overlays a YAML pricing table on base. Keys absent from the
// file keep their base value.
func LoadPricingFile(path string, base PricingConfig) (PricingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read pricing file %s: %w", path, err)
	}

	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, fmt.Errorf("failed to parse pricing file %s: %w", path, err)
	}
	return out, nil
}
