package postgres

import (
	"context"
	"errors"

	"stockgame/internal/market"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SeedInstruments inserts instruments that are not listed yet. Existing rows
// keep their current price.
func (s *Store) SeedInstruments(ctx context.Context, instruments []market.Instrument) error {
	batch := &pgx.Batch{}
	for _, in := range instruments {
		anchor := in.Anchor
		if !anchor.IsPositive() {
			anchor = in.Price
		}
		batch.Queue(`
			INSERT INTO stockgame.instruments (symbol, name, price, anchor)
			VALUES ($1, $2, $3::numeric, $4::numeric)
			ON CONFLICT (symbol) DO NOTHING
		`, in.Symbol, in.Name, in.Price.String(), anchor.String())
	}
	return s.db.SendBatch(ctx, batch).Close()
}

func (s *Store) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRow(ctx, `
		SELECT price::text FROM stockgame.instruments WHERE symbol = $1
	`, market.NormalizeSymbol(symbol)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, market.ErrUnknownSymbol
		}
		return decimal.Zero, err
	}
	return parseDecimal(raw, "price")
}

func (s *Store) Instruments(ctx context.Context) ([]market.Instrument, error) {
	rows, err := s.db.Query(ctx, `
		SELECT symbol, name, price::text, anchor::text
		FROM stockgame.instruments
		ORDER BY symbol
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]market.Instrument, 0)
	for rows.Next() {
		var in market.Instrument
		var price, anchor string
		if err := rows.Scan(&in.Symbol, &in.Name, &price, &anchor); err != nil {
			return nil, err
		}
		if in.Price, err = parseDecimal(price, "price"); err != nil {
			return nil, err
		}
		if in.Anchor, err = parseDecimal(anchor, "anchor"); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ApplyTick writes a full set of next prices in one transaction so readers
// never observe a half-applied tick.
func (s *Store) ApplyTick(ctx context.Context, next []market.Instrument) error {
	return s.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		for _, in := range next {
			if _, err := tx.Exec(ctx, `
				UPDATE stockgame.instruments
				SET price = $1::numeric, anchor = $2::numeric, updated_at = now()
				WHERE symbol = $3
			`, in.Price.String(), in.Anchor.String(), in.Symbol); err != nil {
				return err
			}
		}
		return nil
	})
}
