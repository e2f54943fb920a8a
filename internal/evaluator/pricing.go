package evaluator

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed pricing.yaml
var pricingYAML []byte

// pricingTable maps model hints to static per-token rates. Local execution
// is free; remote cost is estimatedTokens multiplied by the model rate.
type pricingTable struct {
	DefaultModel string             `yaml:"default_model"`
	PremiumModel string             `yaml:"premium_model"`
	Rates        map[string]float64 `yaml:"rates"`
}

func loadPricing() (*pricingTable, error) {
	var table pricingTable
	if err := yaml.Unmarshal(pricingYAML, &table); err != nil {
		return nil, fmt.Errorf("failed to parse pricing table: %w", err)
	}
	if table.DefaultModel == "" || len(table.Rates) == 0 {
		return nil, fmt.Errorf("pricing table is incomplete")
	}
	if _, ok := table.Rates[table.DefaultModel]; !ok {
		return nil, fmt.Errorf("pricing table has no rate for default model %s", table.DefaultModel)
	}
	return &table, nil
}

// rate returns the per-token rate for a model hint, falling back to the
// default model's rate for unknown hints.
func (p *pricingTable) rate(model string) float64 {
	if r, ok := p.Rates[model]; ok {
		return r
	}
	return p.Rates[p.DefaultModel]
}
