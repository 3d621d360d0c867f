package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"optionDesk/internal/domain"
)

// Instrument is the catalog entry type; the simulator consumes it directly.
type Instrument = domain.Instrument

// instrumentFile is the on-disk layout of INSTRUMENTS_FILE.
type instrumentFile struct {
	Instruments []instrumentEntry `yaml:"instruments"`
}

// instrumentEntry is one catalog row. An omitted precision takes the default;
// an explicit 0 means whole prices.
type instrumentEntry struct {
	Symbol     string  `yaml:"symbol"`
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	SeedPrice  float64 `yaml:"seed_price"`
	Volatility float64 `yaml:"volatility"`
	Precision  *int    `yaml:"precision"`
}

const defaultPrecision = 2

// DefaultInstruments returns the compiled-in catalog.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Symbol: "BTC/USD", Name: "Bitcoin", Type: "Crypto", SeedPrice: 84421.44, Volatility: 0.002, Precision: 2},
		{Symbol: "ETH/USD", Name: "Ethereum", Type: "Crypto", SeedPrice: 3150.25, Volatility: 0.002, Precision: 2},
		{Symbol: "EUR/USD", Name: "Euro / US Dollar", Type: "Forex", SeedPrice: 1.0850, Volatility: 0.002, Precision: 4},
		{Symbol: "AAPL", Name: "Apple Inc.", Type: "Stock", SeedPrice: 189.50, Volatility: 0.002, Precision: 2},
	}
}

// LoadInstruments reads a YAML catalog, fills defaults and validates it.
func LoadInstruments(path string) ([]Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments file: %w", err)
	}

	var f instrumentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments file: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("instruments file %s lists no instruments", path)
	}

	out := make([]Instrument, 0, len(f.Instruments))
	seen := make(map[string]bool, len(f.Instruments))
	for i, e := range f.Instruments {
		if e.Symbol == "" {
			return nil, fmt.Errorf("instrument #%d: symbol is required", i+1)
		}
		if seen[e.Symbol] {
			return nil, fmt.Errorf("instrument %s: duplicate symbol", e.Symbol)
		}
		seen[e.Symbol] = true
		if e.SeedPrice <= 0 {
			return nil, fmt.Errorf("instrument %s: seed_price must be positive", e.Symbol)
		}
		inst := Instrument{
			Symbol:     e.Symbol,
			Name:       e.Name,
			Type:       e.Type,
			SeedPrice:  e.SeedPrice,
			Volatility: e.Volatility,
			Precision:  defaultPrecision,
		}
		if inst.Volatility == 0 {
			inst.Volatility = 0.002
		}
		if inst.Volatility < 0 || inst.Volatility >= 1 {
			return nil, fmt.Errorf("instrument %s: volatility must be in (0, 1)", inst.Symbol)
		}
		if e.Precision != nil {
			inst.Precision = *e.Precision
		}
		if inst.Precision < 0 || inst.Precision > 8 {
			return nil, fmt.Errorf("instrument %s: precision must be between 0 and 8", inst.Symbol)
		}
		if inst.Name == "" {
			inst.Name = inst.Symbol
		}
		out = append(out, inst)
	}
	return out, nil
}

func hasSymbol(instruments []Instrument, symbol string) bool {
	for _, inst := range instruments {
		if inst.Symbol == symbol {
			return true
		}
	}
	return false
}
