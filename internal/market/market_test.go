package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateSymbol(t *testing.T) {
	for _, s := range []string{"AAPL", "KO", "GOOGL", "A"} {
		if err := ValidateSymbol(s); err != nil {
			t.Fatalf("expected %q to be valid: %v", s, err)
		}
	}
	for _, s := range []string{"", "aapl", "TOOLONG", "BRK.B", "AB1"} {
		if err := ValidateSymbol(s); err == nil {
			t.Fatalf("expected %q to fail", s)
		}
	}
}

func TestTablePrice(t *testing.T) {
	table := NewTable(DefaultInstruments())
	ctx := context.Background()

	p, err := table.Price(ctx, " aapl ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Equal(decimal.RequireFromString("189.50")) {
		t.Fatalf("AAPL price = %s", p)
	}
	if _, err := table.Price(ctx, "ZZZZ"); err != ErrUnknownSymbol {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}

	table.Set("AAPL", decimal.NewFromInt(10))
	p, _ = table.Price(ctx, "AAPL")
	if !p.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("Set did not override price: %s", p)
	}
}

func TestTableApplyTickIgnoresUnknown(t *testing.T) {
	table := NewTable(DefaultInstruments()[:2])
	ctx := context.Background()
	err := table.ApplyTick(ctx, []Instrument{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.NewFromInt(200), Anchor: decimal.NewFromInt(190)},
		{Symbol: "ZZZZ", Price: decimal.NewFromInt(1)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, _ := table.Instruments(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(list))
	}
	if list[0].Symbol != "AAPL" || !list[0].Price.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected first instrument: %+v", list[0])
	}
}

func TestLoadInstruments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	body := `
instruments:
  - symbol: aapl
    name: Apple Inc.
    price: "189.50"
  - symbol: KO
    price: 60.35
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	got, err := LoadInstruments(path)
	if err != nil {
		t.Fatalf("LoadInstruments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instruments", len(got))
	}
	if got[0].Symbol != "AAPL" || !got[0].Anchor.Equal(got[0].Price) {
		t.Fatalf("unexpected first instrument: %+v", got[0])
	}
	if got[1].Name != "KO" {
		t.Fatalf("expected name to default to symbol, got %q", got[1].Name)
	}
}

func TestLoadInstrumentsRejectsBadRows(t *testing.T) {
	tests := map[string]string{
		"duplicate": "instruments:\n  - {symbol: AAPL, price: \"1\"}\n  - {symbol: AAPL, price: \"2\"}\n",
		"zero":      "instruments:\n  - {symbol: AAPL, price: \"0\"}\n",
		"symbol":    "instruments:\n  - {symbol: \"BRK.B\", price: \"1\"}\n",
		"empty":     "instruments: []\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "instruments.yaml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write file: %v", err)
			}
			if _, err := LoadInstruments(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
