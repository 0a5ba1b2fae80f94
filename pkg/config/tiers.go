package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"execution-core/internal/model"
)

// TierTable resolves entitlement features by tier name. It is built once at
// startup and injected into the risk gate, replacing any hard-coded limit map.
type TierTable struct {
	tiers map[string]model.TierFeatures
}

// tierFile is the top-level YAML structure.
type tierFile struct {
	Tiers map[string]model.TierFeatures `yaml:"tiers"`
}

// DefaultTiers returns the built-in entitlement table.
func DefaultTiers() *TierTable {
	return &TierTable{tiers: map[string]model.TierFeatures{
		"free": {
			LiveTradingEnabled: false,
			MaxOpenOrders:      5,
			MaxDailyLoss:       100,
		},
		"pro": {
			LiveTradingEnabled: true,
			MaxOpenOrders:      10,
			MaxDailyLoss:       1000,
		},
		"institutional": {
			LiveTradingEnabled: true,
			MaxOpenOrders:      -1,
			MaxDailyLoss:       -1,
		},
	}}
}

// LoadTiers reads a tier table from a YAML file. An empty path returns the
// built-in defaults.
func LoadTiers(path string) (*TierTable, error) {
	if path == "" {
		return DefaultTiers(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier table: %w", err)
	}

	var file tierFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tier table: %w", err)
	}
	if len(file.Tiers) == 0 {
		return nil, fmt.Errorf("tier table %s defines no tiers", path)
	}

	tiers := make(map[string]model.TierFeatures, len(file.Tiers))
	for name, features := range file.Tiers {
		tiers[strings.ToLower(name)] = features
	}
	return &TierTable{tiers: tiers}, nil
}

// TierFeatures returns the entitlement set for a tier name.
func (t *TierTable) TierFeatures(tier string) (model.TierFeatures, error) {
	features, ok := t.tiers[strings.ToLower(tier)]
	if !ok {
		return model.TierFeatures{}, fmt.Errorf("unknown tier %q: %w", tier, model.ErrNotFound)
	}
	return features, nil
}
