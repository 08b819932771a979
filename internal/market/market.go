// Package market provides the instrument prices that trades settle against.
package market

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownSymbol = errors.New("unknown stock symbol")
	ErrInvalidSymbol = errors.New("symbol must be 1-5 uppercase letters")
)

var symbolRE = regexp.MustCompile(`^[A-Z]{1,5}$`)

type Instrument struct {
	Symbol string          `json:"symbol" yaml:"symbol"`
	Name   string          `json:"name" yaml:"name"`
	Price  decimal.Decimal `json:"price" yaml:"price"`
	Anchor decimal.Decimal `json:"-" yaml:"anchor"`
}

// Source resolves the current unit price of a tradable symbol.
type Source interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Book is a Source whose prices can be read in bulk and advanced by a tick.
type Book interface {
	Source
	Instruments(ctx context.Context) ([]Instrument, error)
	ApplyTick(ctx context.Context, next []Instrument) error
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func ValidateSymbol(symbol string) error {
	if !symbolRE.MatchString(symbol) {
		return ErrInvalidSymbol
	}
	return nil
}

func DefaultInstruments() []Instrument {
	seed := []struct {
		Symbol string
		Name   string
		Price  string
	}{
		{"AAPL", "Apple Inc.", "189.50"},
		{"MSFT", "Microsoft Corp.", "415.20"},
		{"GOOGL", "Alphabet Inc.", "152.80"},
		{"AMZN", "Amazon.com Inc.", "178.30"},
		{"TSLA", "Tesla Inc.", "201.10"},
		{"NVDA", "NVIDIA Corp.", "880.00"},
		{"META", "Meta Platforms Inc.", "495.60"},
		{"NFLX", "Netflix Inc.", "610.40"},
		{"AMD", "Advanced Micro Devices", "164.90"},
		{"INTC", "Intel Corp.", "42.15"},
		{"ORCL", "Oracle Corp.", "124.70"},
		{"IBM", "IBM Corp.", "188.25"},
		{"KO", "Coca-Cola Co.", "60.35"},
		{"DIS", "Walt Disney Co.", "112.40"},
		{"JPM", "JPMorgan Chase & Co.", "198.75"},
	}
	out := make([]Instrument, 0, len(seed))
	for _, row := range seed {
		p := decimal.RequireFromString(row.Price)
		out = append(out, Instrument{Symbol: row.Symbol, Name: row.Name, Price: p, Anchor: p})
	}
	return out
}

type instrumentsFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// LoadInstruments reads an instrument list from a YAML file of the form
//
//	instruments:
//	  - symbol: AAPL
//	    name: Apple Inc.
//	    price: "189.50"
func LoadInstruments(path string) ([]Instrument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments file: %w", err)
	}
	var f instrumentsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse instruments file: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("instruments file %s lists no instruments", path)
	}
	seen := make(map[string]struct{}, len(f.Instruments))
	for i := range f.Instruments {
		in := &f.Instruments[i]
		in.Symbol = NormalizeSymbol(in.Symbol)
		if err := ValidateSymbol(in.Symbol); err != nil {
			return nil, fmt.Errorf("instrument %d: %w", i, err)
		}
		if _, dup := seen[in.Symbol]; dup {
			return nil, fmt.Errorf("instrument %s listed twice", in.Symbol)
		}
		seen[in.Symbol] = struct{}{}
		if !in.Price.IsPositive() {
			return nil, fmt.Errorf("instrument %s: price must be > 0", in.Symbol)
		}
		if !in.Anchor.IsPositive() {
			in.Anchor = in.Price
		}
		if strings.TrimSpace(in.Name) == "" {
			in.Name = in.Symbol
		}
	}
	return f.Instruments, nil
}

// Table is an in-memory Book.
type Table struct {
	mu     sync.RWMutex
	byName map[string]Instrument
}

func NewTable(instruments []Instrument) *Table {
	t := &Table{byName: make(map[string]Instrument, len(instruments))}
	for _, in := range instruments {
		t.byName[in.Symbol] = in
	}
	return t
}

func (t *Table) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	in, ok := t.byName[NormalizeSymbol(symbol)]
	if !ok {
		return decimal.Zero, ErrUnknownSymbol
	}
	return in.Price, nil
}

func (t *Table) Instruments(_ context.Context) ([]Instrument, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Instrument, 0, len(t.byName))
	for _, in := range t.byName {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (t *Table) ApplyTick(_ context.Context, next []Instrument) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, in := range next {
		if _, ok := t.byName[in.Symbol]; !ok {
			continue
		}
		t.byName[in.Symbol] = in
	}
	return nil
}

// Set overrides a single price. Used to pin prices in tests and admin tooling.
func (t *Table) Set(symbol string, price decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	symbol = NormalizeSymbol(symbol)
	in, ok := t.byName[symbol]
	if !ok {
		in = Instrument{Symbol: symbol, Name: symbol, Anchor: price}
	}
	in.Price = price
	t.byName[symbol] = in
}
