package domain

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFallbackFactor applies to categories missing from a factor table.
const DefaultFallbackFactor = 0.1

// FactorTable maps categories to kg CO2 per unit of quantity.
type FactorTable struct {
	Factors  map[Category]float64 `yaml:"factors"`
	Fallback float64              `yaml:"default"`
}

// DefaultFactorTable returns the built-in emission factors.
func DefaultFactorTable() FactorTable {
	return FactorTable{
		Factors: map[Category]float64{
			CategoryTransport: 0.2, // per km
			CategoryFood:      0.5, // per kg
			CategoryEnergy:    0.8, // per kWh
			CategoryWaste:     0.1, // per kg
		},
		Fallback: DefaultFallbackFactor,
	}
}

// LoadFactorTable reads a YAML factor table. Missing categories keep their
// built-in factor and a missing default keeps DefaultFallbackFactor.
func LoadFactorTable(path string) (FactorTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FactorTable{}, fmt.Errorf("read factor table: %w", err)
	}
	return ParseFactorTable(raw)
}

// ParseFactorTable decodes a YAML factor table document.
func ParseFactorTable(raw []byte) (FactorTable, error) {
	var doc struct {
		Factors  map[string]float64 `yaml:"factors"`
		Fallback *float64           `yaml:"default"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return FactorTable{}, fmt.Errorf("decode factor table: %w", err)
	}

	table := DefaultFactorTable()
	for name, factor := range doc.Factors {
		category, ok := ParseCategory(name)
		if !ok {
			return FactorTable{}, fmt.Errorf("factor table: unknown category %q", name)
		}
		if factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
			return FactorTable{}, fmt.Errorf("factor table: invalid factor %v for %s", factor, category)
		}
		table.Factors[category] = factor
	}
	if doc.Fallback != nil {
		if *doc.Fallback < 0 {
			return FactorTable{}, fmt.Errorf("factor table: invalid default %v", *doc.Fallback)
		}
		table.Fallback = *doc.Fallback
	}
	return table, nil
}

// ImpactCalculator derives carbon impact from raw activity data. The server is
// the only source of impact values.
type ImpactCalculator struct {
	table FactorTable
}

// NewImpactCalculator builds a calculator over table.
func NewImpactCalculator(table FactorTable) *ImpactCalculator {
	if table.Factors == nil {
		table = DefaultFactorTable()
	}
	return &ImpactCalculator{table: table}
}

// Factor returns the factor used for category, falling back for unknown ones.
func (c *ImpactCalculator) Factor(category Category) float64 {
	if factor, ok := c.table.Factors[category]; ok {
		return factor
	}
	return c.table.Fallback
}

// Impact returns quantity multiplied by the category factor, in kg CO2.
func (c *ImpactCalculator) Impact(category Category, quantity float64) (float64, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return 0, invalidf("quantity must be a finite number")
	}
	if quantity < 0 {
		return 0, invalidf("quantity must be >= 0")
	}
	return quantity * c.Factor(category), nil
}
