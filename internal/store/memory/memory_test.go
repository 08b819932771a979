package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockgame/internal/auth"
	"stockgame/internal/game"

	"github.com/shopspring/decimal"
)

func seedGame(t *testing.T, s *Store, id string, createdAt time.Time) game.Game {
	t.Helper()
	g := game.Game{
		ID:            id,
		Name:          "game " + id,
		StartTime:     createdAt,
		EndTime:       createdAt.Add(24 * time.Hour),
		InitialAmount: decimal.NewFromInt(500),
		CreatedAt:     createdAt,
	}
	if err := s.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("create game: %v", err)
	}
	return g
}

func TestUsersCaseInsensitiveEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateUser(ctx, auth.User{ID: "u1", Email: "Ada@Example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, auth.User{ID: "u2", Email: "ada@example.com"}); !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("duplicate email err = %v, want ErrEmailTaken", err)
	}
	u, err := s.UserByEmail(ctx, "ADA@example.com")
	if err != nil || u.ID != "u1" {
		t.Fatalf("lookup = %+v, %v", u, err)
	}
	if err := s.SetAdmin(ctx, "u1", true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if u, _ := s.UserByID(ctx, "u1"); !u.IsAdmin {
		t.Fatalf("expected admin flag to stick")
	}
	if _, err := s.UserByID(ctx, "nope"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestAddParticipantOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := seedGame(t, s, "g1", time.Now())
	p := game.NewParticipant(g, "u1", time.Now())

	if err := s.AddParticipant(ctx, p); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.AddParticipant(ctx, p); !errors.Is(err, game.ErrAlreadyRegistered) {
		t.Fatalf("second add err = %v, want ErrAlreadyRegistered", err)
	}
	if err := s.AddParticipant(ctx, game.Participant{GameID: "missing", UserID: "u1"}); !errors.Is(err, game.ErrGameNotFound) {
		t.Fatalf("unknown game err = %v", err)
	}
	got, err := s.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.ParticipantCount != 1 || len(got.Participants) != 1 {
		t.Fatalf("roster = %d/%d, want 1", got.ParticipantCount, len(got.Participants))
	}
}

func TestSettleRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := seedGame(t, s, "g1", time.Now())
	if err := s.AddParticipant(ctx, game.NewParticipant(g, "u1", time.Now())); err != nil {
		t.Fatalf("add: %v", err)
	}

	boom := errors.New("boom")
	after, _, err := s.Settle(ctx, "g1", "u1", func(p *game.Participant) (game.Trade, error) {
		p.Cash = decimal.Zero
		p.Holdings["AAPL"] = 9
		return game.Trade{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("settle err = %v", err)
	}
	if !after.Cash.Equal(decimal.NewFromInt(500)) || after.Quantity("AAPL") != 0 || after.Version != 0 {
		t.Fatalf("state changed after failed settle: %+v", after)
	}

	after, tr, err := s.Settle(ctx, "g1", "u1", func(p *game.Participant) (game.Trade, error) {
		p.Cash = p.Cash.Sub(decimal.NewFromInt(100))
		p.Holdings["AAPL"] = 1
		return game.Trade{ID: "t1", GameID: "g1", UserID: "u1", Side: game.SideBuy, Symbol: "AAPL", Quantity: 1}, nil
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if after.Version != 1 || !after.Cash.Equal(decimal.NewFromInt(400)) || tr.ID != "t1" {
		t.Fatalf("unexpected settle result: %+v %+v", after, tr)
	}

	if _, _, err := s.Settle(ctx, "g1", "u2", nil); !errors.Is(err, game.ErrNotParticipant) {
		t.Fatalf("unregistered settle err = %v", err)
	}
}

func TestListGamesNewestFirst(t *testing.T) {
	s := New()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	seedGame(t, s, "a", base)
	seedGame(t, s, "b", base.Add(time.Hour))
	seedGame(t, s, "c", base.Add(2*time.Hour))

	page, total, err := s.ListGames(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(page) != 2 || page[0].ID != "b" || page[1].ID != "a" {
		t.Fatalf("page = %+v total=%d", page, total)
	}
	empty, _, _ := s.ListGames(context.Background(), 10, 5)
	if len(empty) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(empty))
	}
}

func TestListTradesNewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := seedGame(t, s, "g1", time.Now())
	_ = s.AddParticipant(ctx, game.NewParticipant(g, "u1", time.Now()))
	for _, id := range []string{"t1", "t2", "t3"} {
		id := id
		if _, _, err := s.Settle(ctx, "g1", "u1", func(p *game.Participant) (game.Trade, error) {
			return game.Trade{ID: id}, nil
		}); err != nil {
			t.Fatalf("settle %s: %v", id, err)
		}
	}
	trades, err := s.ListTrades(ctx, "g1", "u1", 2)
	if err != nil {
		t.Fatalf("list trades: %v", err)
	}
	if len(trades) != 2 || trades[0].ID != "t3" || trades[1].ID != "t2" {
		t.Fatalf("trades = %+v", trades)
	}
}
