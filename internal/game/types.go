package game

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MessagePurchased = "Stocks purchased successfully"
	MessageSold      = "Stocks sold successfully"
)

// Store persists games, participants and trades. Implementations must make
// AddParticipant at-most-once per (game, user) and must serialize Settle calls
// for the same participant.
type Store interface {
	CreateGame(ctx context.Context, g Game) error
	GetGame(ctx context.Context, gameID string) (Game, error)
	ListGames(ctx context.Context, offset, limit int) ([]Game, int, error)

	AddParticipant(ctx context.Context, p Participant) error
	GetParticipant(ctx context.Context, gameID, userID string) (Participant, error)
	ListParticipants(ctx context.Context, gameID string) ([]Participant, error)

	// Settle runs fn against the current participant state. When fn succeeds
	// the mutated participant and the returned trade are persisted together;
	// when it fails nothing is written.
	Settle(ctx context.Context, gameID, userID string, fn func(p *Participant) (Trade, error)) (Participant, Trade, error)
	ListTrades(ctx context.Context, gameID, userID string, limit int) ([]Trade, error)
}

type CreateGameInput struct {
	Name          string
	StartTime     time.Time
	EndTime       time.Time
	InitialAmount decimal.Decimal
	CreatedBy     string
}

type TradeInput struct {
	GameID   string
	UserID   string
	Symbol   string
	Quantity int64
}

type TradeResult struct {
	Message     string
	Participant Participant
	Trade       Trade
}

type GamePage struct {
	Games []Game
	Page  int
	Limit int
	Total int
}

type Holding struct {
	Symbol   string
	Quantity int64
	Price    decimal.Decimal
	Value    decimal.Decimal
}

type Portfolio struct {
	GameID        string
	UserID        string
	Cash          decimal.Decimal
	Holdings      []Holding
	HoldingsValue decimal.Decimal
	NetWorth      decimal.Decimal
}

type LeaderboardRow struct {
	Rank     int
	UserID   string
	Cash     decimal.Decimal
	NetWorth decimal.Decimal
}
