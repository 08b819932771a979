package game

import (
	"math"

	"github.com/shopspring/decimal"
)

// ApplyBuy debits price*qty from cash and credits qty shares of symbol.
// On error the participant is left untouched.
func (p *Participant) ApplyBuy(symbol string, qty int64, price decimal.Decimal) (decimal.Decimal, error) {
	if qty <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return decimal.Zero, ErrInvalidPrice
	}
	if qty > math.MaxInt64-p.Holdings[symbol] {
		return decimal.Zero, ErrHoldingOverflow
	}
	cost := price.Mul(decimal.NewFromInt(qty))
	if cost.GreaterThan(p.Cash) {
		return decimal.Zero, ErrInsufficientFunds
	}
	if p.Holdings == nil {
		p.Holdings = map[string]int64{}
	}
	p.Cash = p.Cash.Sub(cost)
	p.Holdings[symbol] += qty
	return cost, nil
}

// ApplySell removes qty shares of symbol and credits price*qty to cash.
// Symbols that drop to zero are pruned. On error the participant is left untouched.
func (p *Participant) ApplySell(symbol string, qty int64, price decimal.Decimal) (decimal.Decimal, error) {
	if qty <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return decimal.Zero, ErrInvalidPrice
	}
	held := p.Holdings[symbol]
	if qty > held {
		return decimal.Zero, ErrInsufficientHoldings
	}
	proceeds := price.Mul(decimal.NewFromInt(qty))
	if p.Cash.Add(proceeds).GreaterThan(MaxAmount) {
		return decimal.Zero, ErrCashOverflow
	}
	if held == qty {
		delete(p.Holdings, symbol)
	} else {
		p.Holdings[symbol] = held - qty
	}
	p.Cash = p.Cash.Add(proceeds)
	return proceeds, nil
}
