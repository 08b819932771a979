package market

import (
	"context"
	"fmt"
	"math"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	minPrice = decimal.RequireFromString("0.01")
	maxPrice = decimal.NewFromInt(1_000_000)
)

type dynamics struct {
	NoiseScale        float64
	ShockProb         float64
	ShockScale        float64
	ExtremeShockProb  float64
	ExtremeShockScale float64
	MeanReversion     float64
	AnchorNoiseScale  float64
	RegimeSwitchProb  float64
	MaxDropPerTick    float64
}

func volatilityParams(mode string) dynamics {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "calm":
		return dynamics{
			NoiseScale:        0.004,
			ShockProb:         0.02,
			ShockScale:        0.03,
			ExtremeShockProb:  0.002,
			ExtremeShockScale: 0.08,
			MeanReversion:     0.05,
			AnchorNoiseScale:  0.002,
			RegimeSwitchProb:  0.02,
			MaxDropPerTick:    0.15,
		}
	case "wild":
		return dynamics{
			NoiseScale:        0.020,
			ShockProb:         0.10,
			ShockScale:        0.10,
			ExtremeShockProb:  0.020,
			ExtremeShockScale: 0.30,
			MeanReversion:     0.015,
			AnchorNoiseScale:  0.010,
			RegimeSwitchProb:  0.08,
			MaxDropPerTick:    0.50,
		}
	default:
		return dynamics{
			NoiseScale:        0.010,
			ShockProb:         0.05,
			ShockScale:        0.06,
			ExtremeShockProb:  0.008,
			ExtremeShockScale: 0.18,
			MeanReversion:     0.03,
			AnchorNoiseScale:  0.005,
			RegimeSwitchProb:  0.05,
			MaxDropPerTick:    0.30,
		}
	}
}

// Simulator evolves instrument prices with a regime-switching random walk that
// reverts toward a slowly drifting anchor price.
type Simulator struct {
	mu     sync.Mutex
	rand   *mathrand.Rand
	params dynamics
	regime string
}

func NewSimulator(volatility string, seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		rand:   mathrand.New(mathrand.NewSource(seed)),
		params: volatilityParams(volatility),
		regime: "neutral",
	}
}

func (s *Simulator) Regime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regime
}

// Step returns the next price for every instrument. The input is not modified.
func (s *Simulator) Step(in []Instrument) []Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.params
	if s.rand.Float64() < p.RegimeSwitchProb {
		s.regime = randomRegime(s.rand.Float64())
	}

	out := make([]Instrument, len(in))
	for i, st := range in {
		price := st.Price.InexactFloat64()
		anchor := st.Anchor.InexactFloat64()
		if anchor <= 0 {
			anchor = price
		}

		anchorRet := 0.30*regimeDrift(s.regime) + p.AnchorNoiseScale*normalish(s.rand.Float64())
		if s.rand.Float64() < p.ShockProb*0.20 {
			anchorRet += signedShock(s.rand.Float64(), s.rand.Float64(), p.ShockScale*0.40)
		}
		nextAnchor := evolvePrice(anchor, anchorRet, p.MaxDropPerTick)

		ret := regimeDrift(s.regime) + p.NoiseScale*normalish(s.rand.Float64()) + meanReversion(price, anchor, p.MeanReversion)
		if s.rand.Float64() < p.ShockProb {
			ret += signedShock(s.rand.Float64(), s.rand.Float64(), p.ShockScale)
		}
		if s.rand.Float64() < p.ExtremeShockProb {
			ret += signedShock(s.rand.Float64(), s.rand.Float64(), p.ExtremeShockScale)
		}
		next := evolvePrice(price, ret, p.MaxDropPerTick)

		st.Price = clampPrice(decimal.NewFromFloat(next).Round(2))
		st.Anchor = clampPrice(decimal.NewFromFloat(nextAnchor).Round(2))
		out[i] = st
	}
	return out
}

// RunTick advances every instrument in book by one simulator step.
func RunTick(ctx context.Context, book Book, sim *Simulator) error {
	current, err := book.Instruments(ctx)
	if err != nil {
		return fmt.Errorf("read instruments: %w", err)
	}
	if len(current) == 0 {
		return nil
	}
	if err := book.ApplyTick(ctx, sim.Step(current)); err != nil {
		return fmt.Errorf("apply tick: %w", err)
	}
	return nil
}

func clampPrice(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(minPrice) {
		return minPrice
	}
	if p.GreaterThan(maxPrice) {
		return maxPrice
	}
	return p
}

func randomRegime(seed float64) string {
	switch {
	case seed < 0.25:
		return "bear"
	case seed < 0.75:
		return "neutral"
	default:
		return "bull"
	}
}

func regimeDrift(regime string) float64 {
	switch regime {
	case "bull":
		return 0.0015
	case "bear":
		return -0.0015
	default:
		return 0
	}
}

func meanReversion(price, anchor, strength float64) float64 {
	if price <= 0 || anchor <= 0 {
		return 0
	}
	return strength * (anchor - price) / price
}

func normalish(seed float64) float64 {
	return (seed - 0.5) * 2
}

func signedShock(magSeed, signSeed, base float64) float64 {
	mag := base * (0.5 + magSeed)
	if signSeed < 0.5 {
		return -mag
	}
	return mag
}

// evolvePrice applies ret to price, bounding a single-tick drop to maxDrop.
func evolvePrice(price, ret, maxDrop float64) float64 {
	if ret < -maxDrop {
		ret = -maxDrop
	}
	next := price * (1 + ret)
	if math.IsNaN(next) || math.IsInf(next, 0) || next <= 0 {
		return price * (1 - maxDrop)
	}
	return next
}
