package postgres

import (
	"context"
	"errors"
	"sort"

	"stockgame/internal/game"

	"github.com/jackc/pgx/v5"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) CreateGame(ctx context.Context, g game.Game) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO stockgame.games (id, name, start_time, end_time, initial_amount, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
	`, g.ID, g.Name, g.StartTime, g.EndTime, g.InitialAmount.String(), g.CreatedBy, g.CreatedAt)
	return err
}

func (s *Store) GetGame(ctx context.Context, gameID string) (game.Game, error) {
	var g game.Game
	var amount string
	err := s.db.QueryRow(ctx, `
		SELECT id::text, name, start_time, end_time, initial_amount::text, created_by, created_at
		FROM stockgame.games
		WHERE id = $1
	`, gameID).Scan(&g.ID, &g.Name, &g.StartTime, &g.EndTime, &amount, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.Game{}, game.ErrGameNotFound
		}
		return game.Game{}, err
	}
	if g.InitialAmount, err = parseDecimal(amount, "initial_amount"); err != nil {
		return game.Game{}, err
	}
	if g.Participants, err = loadParticipants(ctx, s.db, gameID, ""); err != nil {
		return game.Game{}, err
	}
	g.ParticipantCount = len(g.Participants)
	return g, nil
}

func (s *Store) ListGames(ctx context.Context, offset, limit int) ([]game.Game, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM stockgame.games`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT g.id::text, g.name, g.start_time, g.end_time, g.initial_amount::text, g.created_by, g.created_at,
			(SELECT count(*) FROM stockgame.participants p WHERE p.game_id = g.id)
		FROM stockgame.games g
		ORDER BY g.created_at DESC, g.id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]game.Game, 0, limit)
	for rows.Next() {
		var g game.Game
		var amount string
		if err := rows.Scan(&g.ID, &g.Name, &g.StartTime, &g.EndTime, &amount, &g.CreatedBy, &g.CreatedAt, &g.ParticipantCount); err != nil {
			return nil, 0, err
		}
		if g.InitialAmount, err = parseDecimal(amount, "initial_amount"); err != nil {
			return nil, 0, err
		}
		out = append(out, g)
	}
	return out, total, rows.Err()
}

// AddParticipant relies on the (game_id, user_id) primary key so concurrent
// registrations for the same user resolve to exactly one row.
func (s *Store) AddParticipant(ctx context.Context, p game.Participant) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stockgame.games WHERE id = $1)`, p.GameID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return game.ErrGameNotFound
	}
	cmd, err := s.db.Exec(ctx, `
		INSERT INTO stockgame.participants (game_id, user_id, cash, version, joined_at)
		VALUES ($1, $2, $3::numeric, $4, $5)
		ON CONFLICT (game_id, user_id) DO NOTHING
	`, p.GameID, p.UserID, p.Cash.String(), p.Version, p.JoinedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return game.ErrAlreadyRegistered
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, gameID, userID string) (game.Participant, error) {
	ps, err := loadParticipants(ctx, s.db, gameID, userID)
	if err != nil {
		return game.Participant{}, err
	}
	if len(ps) == 0 {
		return game.Participant{}, s.missingParticipant(ctx, s.db, gameID)
	}
	return ps[0], nil
}

func (s *Store) ListParticipants(ctx context.Context, gameID string) ([]game.Participant, error) {
	ps, err := loadParticipants(ctx, s.db, gameID, "")
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		if err := s.missingParticipant(ctx, s.db, gameID); errors.Is(err, game.ErrGameNotFound) {
			return nil, err
		}
	}
	return ps, nil
}

// Settle locks the participant row, applies fn and writes cash, holdings and
// the trade in one serializable transaction.
func (s *Store) Settle(ctx context.Context, gameID, userID string, fn func(p *game.Participant) (game.Trade, error)) (game.Participant, game.Trade, error) {
	var (
		out game.Participant
		tr  game.Trade
	)
	err := s.retrySerializable(ctx, "settle", func(tx pgx.Tx) error {
		var cash string
		var p game.Participant
		err := tx.QueryRow(ctx, `
			SELECT game_id::text, user_id, cash::text, version, joined_at
			FROM stockgame.participants
			WHERE game_id = $1 AND user_id = $2
			FOR UPDATE
		`, gameID, userID).Scan(&p.GameID, &p.UserID, &cash, &p.Version, &p.JoinedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.missingParticipant(ctx, tx, gameID)
			}
			return err
		}
		if p.Cash, err = parseDecimal(cash, "cash"); err != nil {
			return err
		}
		if p.Holdings, err = loadHoldings(ctx, tx, gameID, userID); err != nil {
			return err
		}

		before := p.Clone()
		next := p.Clone()
		t, err := fn(&next)
		if err != nil {
			return err
		}
		next.Version = before.Version + 1

		if _, err := tx.Exec(ctx, `
			UPDATE stockgame.participants
			SET cash = $1::numeric, version = $2
			WHERE game_id = $3 AND user_id = $4
		`, next.Cash.String(), next.Version, gameID, userID); err != nil {
			return err
		}
		if err := writeHoldings(ctx, tx, before, next); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stockgame.trades (id, game_id, user_id, side, symbol, quantity, price, total, executed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9)
		`, t.ID, gameID, userID, string(t.Side), t.Symbol, t.Quantity, t.Price.String(), t.Total.String(), t.ExecutedAt); err != nil {
			return err
		}
		out = next
		tr = t
		return nil
	})
	if err != nil {
		return game.Participant{}, game.Trade{}, err
	}
	return out, tr, nil
}

func (s *Store) ListTrades(ctx context.Context, gameID, userID string, limit int) ([]game.Trade, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, game_id::text, user_id, side, symbol, quantity, price::text, total::text, executed_at
		FROM stockgame.trades
		WHERE game_id = $1 AND user_id = $2
		ORDER BY executed_at DESC, id
		LIMIT $3
	`, gameID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]game.Trade, 0)
	for rows.Next() {
		var t game.Trade
		var side, price, total string
		if err := rows.Scan(&t.ID, &t.GameID, &t.UserID, &side, &t.Symbol, &t.Quantity, &price, &total, &t.ExecutedAt); err != nil {
			return nil, err
		}
		t.Side = game.Side(side)
		if t.Price, err = parseDecimal(price, "price"); err != nil {
			return nil, err
		}
		if t.Total, err = parseDecimal(total, "total"); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) missingParticipant(ctx context.Context, q querier, gameID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stockgame.games WHERE id = $1)`, gameID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return game.ErrGameNotFound
	}
	return game.ErrNotParticipant
}

// loadParticipants returns the participants of gameID, restricted to userID
// when it is non-empty, ordered by join time.
func loadParticipants(ctx context.Context, q querier, gameID, userID string) ([]game.Participant, error) {
	rows, err := q.Query(ctx, `
		SELECT game_id::text, user_id, cash::text, version, joined_at
		FROM stockgame.participants
		WHERE game_id = $1 AND ($2 = '' OR user_id = $2)
		ORDER BY joined_at, user_id
	`, gameID, userID)
	if err != nil {
		return nil, err
	}
	out := make([]game.Participant, 0)
	for rows.Next() {
		var p game.Participant
		var cash string
		if err := rows.Scan(&p.GameID, &p.UserID, &cash, &p.Version, &p.JoinedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if p.Cash, err = parseDecimal(cash, "cash"); err != nil {
			rows.Close()
			return nil, err
		}
		p.Holdings = map[string]int64{}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	hrows, err := q.Query(ctx, `
		SELECT user_id, symbol, quantity
		FROM stockgame.holdings
		WHERE game_id = $1 AND ($2 = '' OR user_id = $2)
	`, gameID, userID)
	if err != nil {
		return nil, err
	}
	defer hrows.Close()
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.UserID] = i
	}
	for hrows.Next() {
		var uid, symbol string
		var qty int64
		if err := hrows.Scan(&uid, &symbol, &qty); err != nil {
			return nil, err
		}
		if i, ok := index[uid]; ok {
			out[i].Holdings[symbol] = qty
		}
	}
	return out, hrows.Err()
}

func loadHoldings(ctx context.Context, q querier, gameID, userID string) (map[string]int64, error) {
	rows, err := q.Query(ctx, `
		SELECT symbol, quantity
		FROM stockgame.holdings
		WHERE game_id = $1 AND user_id = $2
		FOR UPDATE
	`, gameID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var symbol string
		var qty int64
		if err := rows.Scan(&symbol, &qty); err != nil {
			return nil, err
		}
		out[symbol] = qty
	}
	return out, rows.Err()
}

// writeHoldings persists the difference between two holding maps.
func writeHoldings(ctx context.Context, tx pgx.Tx, before, after game.Participant) error {
	symbols := make(map[string]struct{}, len(before.Holdings)+len(after.Holdings))
	for sym := range before.Holdings {
		symbols[sym] = struct{}{}
	}
	for sym := range after.Holdings {
		symbols[sym] = struct{}{}
	}
	ordered := make([]string, 0, len(symbols))
	for sym := range symbols {
		ordered = append(ordered, sym)
	}
	sort.Strings(ordered)

	for _, sym := range ordered {
		prev, next := before.Holdings[sym], after.Holdings[sym]
		switch {
		case prev == next:
			continue
		case next <= 0:
			if _, err := tx.Exec(ctx, `
				DELETE FROM stockgame.holdings
				WHERE game_id = $1 AND user_id = $2 AND symbol = $3
			`, after.GameID, after.UserID, sym); err != nil {
				return err
			}
		default:
			if _, err := tx.Exec(ctx, `
				INSERT INTO stockgame.holdings (game_id, user_id, symbol, quantity)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (game_id, user_id, symbol) DO UPDATE SET quantity = EXCLUDED.quantity
			`, after.GameID, after.UserID, sym, next); err != nil {
				return err
			}
		}
	}
	return nil
}
