package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"stockgame/internal/auth"
	"stockgame/internal/db"
	"stockgame/internal/game"
	"stockgame/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// newTestStore connects to STOCKGAME_TEST_DATABASE_URL and skips when unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("STOCKGAME_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STOCKGAME_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, url, "stockgame-test", 10)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(pool, nil)
}

func seedGame(t *testing.T, s *Store, cash int64) game.Game {
	t.Helper()
	now := time.Now().UTC()
	g := game.Game{
		ID:            uuid.NewString(),
		Name:          "integration",
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
		InitialAmount: decimal.NewFromInt(cash),
		CreatedAt:     now,
	}
	if err := s.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("create game: %v", err)
	}
	return g
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := auth.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := u
	dup.ID = uuid.NewString()
	if err := s.CreateUser(ctx, dup); !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if err := s.SetAdmin(ctx, u.ID, true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	got, err := s.UserByEmail(ctx, u.Email)
	if err != nil || got.ID != u.ID || !got.IsAdmin {
		t.Fatalf("UserByEmail = %+v, %v", got, err)
	}
	if _, err := s.UserByID(ctx, "not-a-uuid"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestParticipantLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := seedGame(t, s, 1000)
	p := game.NewParticipant(g, "user-1", time.Now().UTC())

	if err := s.AddParticipant(ctx, p); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if err := s.AddParticipant(ctx, p); !errors.Is(err, game.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	price := decimal.NewFromInt(100)
	settled, tr, err := s.Settle(ctx, g.ID, "user-1", func(p *game.Participant) (game.Trade, error) {
		total, err := p.ApplyBuy("AAPL", 3, price)
		return game.Trade{ID: uuid.NewString(), Side: game.SideBuy, Symbol: "AAPL", Quantity: 3, Price: price, Total: total, ExecutedAt: time.Now().UTC()}, err
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !settled.Cash.Equal(decimal.NewFromInt(700)) || settled.Quantity("AAPL") != 3 || settled.Version != 1 {
		t.Fatalf("unexpected participant: %+v", settled)
	}
	if !tr.Total.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("trade total = %s", tr.Total)
	}

	_, _, err = s.Settle(ctx, g.ID, "user-1", func(p *game.Participant) (game.Trade, error) {
		_, err := p.ApplySell("AAPL", 10, price)
		return game.Trade{}, err
	})
	if !errors.Is(err, game.ErrInsufficientHoldings) {
		t.Fatalf("expected ErrInsufficientHoldings, got %v", err)
	}

	loaded, err := s.GetGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if loaded.ParticipantCount != 1 || loaded.Participants[0].Quantity("AAPL") != 3 {
		t.Fatalf("unexpected game: %+v", loaded)
	}
	trades, err := s.ListTrades(ctx, g.ID, "user-1", 10)
	if err != nil || len(trades) != 1 {
		t.Fatalf("ListTrades = %v, %v", trades, err)
	}
	if _, err := s.GetParticipant(ctx, g.ID, "nobody"); !errors.Is(err, game.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := s.GetParticipant(ctx, uuid.NewString(), "user-1"); !errors.Is(err, game.ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestSettleSerializesConcurrentBuys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := seedGame(t, s, 100)
	if err := s.AddParticipant(ctx, game.NewParticipant(g, "user-1", time.Now().UTC())); err != nil {
		t.Fatalf("add participant: %v", err)
	}

	price := decimal.NewFromInt(30)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.Settle(ctx, g.ID, "user-1", func(p *game.Participant) (game.Trade, error) {
				total, err := p.ApplyBuy("KO", 1, price)
				return game.Trade{ID: uuid.NewString(), Side: game.SideBuy, Symbol: "KO", Quantity: 1, Price: price, Total: total, ExecutedAt: time.Now().UTC()}, err
			})
		}()
	}
	wg.Wait()

	p, err := s.GetParticipant(ctx, g.ID, "user-1")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	spent := price.Mul(decimal.NewFromInt(p.Quantity("KO")))
	if p.Cash.IsNegative() || p.Quantity("KO") > 3 || !p.Cash.Add(spent).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected final state: cash=%s ko=%d", p.Cash, p.Quantity("KO"))
	}
}

func TestInstrumentBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SeedInstruments(ctx, market.DefaultInstruments()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := market.RunTick(ctx, s, market.NewSimulator("calm", 7)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	price, err := s.Price(ctx, "aapl")
	if err != nil || !price.IsPositive() {
		t.Fatalf("Price(aapl) = %s, %v", price, err)
	}
	if _, err := s.Price(ctx, "ZZZZZ"); !errors.Is(err, market.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}
