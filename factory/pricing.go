/*
Package factory provides YAML/JSON to Go pricing conversion.

PURPOSE:
  Converts a pricing file into a funding.Pricing. Rate changes (the NDIS
  price guide is revised every July) then need no code change: finance
  edits the file and the service reloads it on restart.

FILE SCHEMA (YAML shown, JSON uses the same keys):
  fallback:
    day: 65.00
    evening: 72.00
    active_night: 85.00
    sleepover: 320.00
  multipliers:
    "1:1": 1.0
    "1:2": 0.6
  flat_rate:
    sleepover: true
  rates:
    day:
      "1:1": 67.56
      "1:2": 40.54

LAYERING:
  Every section is optional. Values in the file override DefaultPricing()
  key by key; omitted keys keep their defaults.

STRICTNESS:
  Calculation is permissive, configuration is not. An unknown shift
  category or a value that does not parse as a decimal fails the load
  instead of pricing shifts at zero.

USAGE:
  pricing, err := factory.LoadPricing("pricing.yaml")
  calc := funding.NewCalculator(pricing)

SEE ALSO:
  - funding/rates.go: Pricing and the rate resolver
  - config/config.go: pricing_file setting
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carelink/funding-engine/funding"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// FILE SCHEMA TYPES
// =============================================================================

// Amount is a decimal written either as a number or as a string.
type Amount string

// UnmarshalJSON accepts 65.5 and "65.50" alike.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = ""
		return nil
	}
	*a = Amount(strings.Trim(s, `"`))
	return nil
}

// PricingFile is the on-disk representation of funding.Pricing.
type PricingFile struct {
	Fallback    map[string]Amount            `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Multipliers map[string]Amount            `json:"multipliers,omitempty" yaml:"multipliers,omitempty"`
	FlatRate    map[string]bool              `json:"flat_rate,omitempty" yaml:"flat_rate,omitempty"`
	Rates       map[string]map[string]Amount `json:"rates,omitempty" yaml:"rates,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParsePricingYAML parses a YAML document into a Pricing.
func ParsePricingYAML(data []byte) (funding.Pricing, error) {
	var pf PricingFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return funding.Pricing{}, fmt.Errorf("failed to parse pricing YAML: %w", err)
	}
	return FromFile(pf)
}

// ParsePricingJSON parses a JSON document into a Pricing.
func ParsePricingJSON(data []byte) (funding.Pricing, error) {
	var pf PricingFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return funding.Pricing{}, fmt.Errorf("failed to parse pricing JSON: %w", err)
	}
	return FromFile(pf)
}

// LoadPricing reads a pricing file, choosing the format by extension.
// An empty path returns DefaultPricing().
func LoadPricing(path string) (funding.Pricing, error) {
	if path == "" {
		return funding.DefaultPricing(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return funding.Pricing{}, fmt.Errorf("failed to read pricing file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParsePricingJSON(data)
	case ".yaml", ".yml":
		return ParsePricingYAML(data)
	default:
		return funding.Pricing{}, fmt.Errorf("unsupported pricing file extension %q", filepath.Ext(path))
	}
}

// FromFile layers pf over DefaultPricing().
func FromFile(pf PricingFile) (funding.Pricing, error) {
	p := funding.DefaultPricing()

	for key, v := range pf.Fallback {
		category, err := parseShiftCategory(key)
		if err != nil {
			return funding.Pricing{}, fmt.Errorf("fallback: %w", err)
		}
		rate, err := parseAmount(v)
		if err != nil {
			return funding.Pricing{}, fmt.Errorf("fallback %s: %w", key, err)
		}
		p.Fallback[category] = rate
	}

	for key, v := range pf.Multipliers {
		ratio, err := parseRatio(key)
		if err != nil {
			return funding.Pricing{}, fmt.Errorf("multipliers: %w", err)
		}
		m, err := parseAmount(v)
		if err != nil {
			return funding.Pricing{}, fmt.Errorf("multipliers %s: %w", key, err)
		}
		p.Multipliers[ratio] = m
	}

	for key, flat := range pf.FlatRate {
		category, err := parseShiftCategory(key)
		if err != nil {
			return funding.Pricing{}, fmt.Errorf("flat_rate: %w", err)
		}
		p.FlatRate[category] = flat
	}

	rates, err := ParseRateTable(pf.Rates)
	if err != nil {
		return funding.Pricing{}, err
	}
	p.Rates = rates

	return p, nil
}

// ParseRateTable converts the "rates" section of a pricing file. The API
// uses it for per-request default tables.
func ParseRateTable(raw map[string]map[string]Amount) (funding.RateTable, error) {
	table := funding.RateTable{}
	for key, byRatio := range raw {
		category, err := parseShiftCategory(key)
		if err != nil {
			return nil, fmt.Errorf("rates: %w", err)
		}
		for ratioKey, v := range byRatio {
			ratio, err := parseRatio(ratioKey)
			if err != nil {
				return nil, fmt.Errorf("rates %s: %w", key, err)
			}
			rate, err := parseAmount(v)
			if err != nil {
				return nil, fmt.Errorf("rates %s %s: %w", key, ratioKey, err)
			}
			table.Set(category, ratio, rate)
		}
	}
	return table, nil
}

// ToFile converts a Pricing back to its file representation.
func ToFile(p funding.Pricing) PricingFile {
	pf := PricingFile{
		Fallback:    make(map[string]Amount, len(p.Fallback)),
		Multipliers: make(map[string]Amount, len(p.Multipliers)),
		FlatRate:    make(map[string]bool, len(p.FlatRate)),
		Rates:       make(map[string]map[string]Amount, len(p.Rates)),
	}
	for c, rate := range p.Fallback {
		pf.Fallback[string(c)] = Amount(rate.StringFixed(2))
	}
	for r, m := range p.Multipliers {
		pf.Multipliers[string(r)] = Amount(m.String())
	}
	for c, flat := range p.FlatRate {
		pf.FlatRate[string(c)] = flat
	}
	for c, byRatio := range p.Rates {
		inner := make(map[string]Amount, len(byRatio))
		for r, rate := range byRatio {
			inner[string(r)] = Amount(rate.StringFixed(2))
		}
		pf.Rates[string(c)] = inner
	}
	return pf
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseShiftCategory(s string) (funding.ShiftCategory, error) {
	c := funding.ShiftCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown shift category %q", s)
	}
	return c, nil
}

func parseRatio(s string) (funding.StaffRatio, error) {
	r := funding.NormalizeRatio(s)
	if r == "" {
		return "", fmt.Errorf("empty staff ratio")
	}
	return r, nil
}

func parseAmount(a Amount) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", string(a))
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative value %s", d)
	}
	return d, nil
}
