package market

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEvolvePriceBoundsDrop(t *testing.T) {
	if got := evolvePrice(100, -0.9, 0.30); math.Abs(got-70) > 1e-9 {
		t.Fatalf("got %f want 70", got)
	}
	if got := evolvePrice(100, 0.05, 0.30); math.Abs(got-105) > 1e-9 {
		t.Fatalf("got %f want 105", got)
	}
}

func TestSimulatorStepKeepsPricesPositive(t *testing.T) {
	for _, mode := range []string{"calm", "mor", "wild"} {
		sim := NewSimulator(mode, 42)
		in := []Instrument{
			{Symbol: "PENNY", Price: decimal.RequireFromString("0.02"), Anchor: decimal.RequireFromString("0.02")},
			{Symbol: "AAPL", Price: decimal.RequireFromString("189.50"), Anchor: decimal.RequireFromString("189.50")},
		}
		for i := 0; i < 500; i++ {
			in = sim.Step(in)
			for _, st := range in {
				if st.Price.LessThan(minPrice) || st.Price.GreaterThan(maxPrice) {
					t.Fatalf("%s: price out of bounds for %s: %s", mode, st.Symbol, st.Price)
				}
			}
		}
	}
}

func TestSimulatorStepDoesNotMutateInput(t *testing.T) {
	sim := NewSimulator("wild", 7)
	in := DefaultInstruments()
	before := in[0].Price
	_ = sim.Step(in)
	if !in[0].Price.Equal(before) {
		t.Fatalf("input mutated")
	}
}

func TestRunTick(t *testing.T) {
	table := NewTable(DefaultInstruments())
	ctx := context.Background()
	before, _ := table.Instruments(ctx)
	if err := RunTick(ctx, table, NewSimulator("wild", 1)); err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	after, _ := table.Instruments(ctx)
	changed := false
	for i := range before {
		if !before[i].Price.Equal(after[i].Price) {
			changed = true
		}
	}
	if !changed {
		t.Fatalf("expected at least one price to move")
	}
}
