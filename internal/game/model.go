package game

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MaxGameNameLength = 120

	DefaultPageSize = 10
	MaxPageSize     = 100

	// Offsets past maxOffset are clamped; no store holds that many games.
	maxOffset = math.MaxInt32
)

var (
	ErrGameNotFound         = errors.New("game not found")
	ErrNotParticipant       = errors.New("player not registered for this game")
	ErrAlreadyRegistered    = errors.New("user already registered for this game")
	ErrGameClosed           = errors.New("game has ended")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient stocks")
	ErrInvalidQuantity      = errors.New("quantity must be a positive integer")
	ErrInvalidPrice         = errors.New("price must be positive")
	ErrTxConflict           = errors.New("transaction conflict, retry later")
	ErrHoldingOverflow      = errors.New("holding would exceed the maximum share count")
	ErrCashOverflow         = errors.New("cash would exceed the maximum balance")
)

// MaxAmount bounds every cash balance. Ledger columns are numeric(20,4), which
// hold values below 1e16.
var MaxAmount = decimal.New(1, 15)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Game struct {
	ID               string
	Name             string
	StartTime        time.Time
	EndTime          time.Time
	InitialAmount    decimal.Decimal
	CreatedBy        string
	CreatedAt        time.Time
	ParticipantCount int
	Participants     []Participant
}

// Status reports whether the game still accepts registrations and trades.
func (g Game) Status(now time.Time) Status {
	if now.Before(g.EndTime) {
		return StatusOpen
	}
	return StatusClosed
}

type Participant struct {
	GameID   string
	UserID   string
	Cash     decimal.Decimal
	Holdings map[string]int64
	Version  int64
	JoinedAt time.Time
}

func NewParticipant(g Game, userID string, now time.Time) Participant {
	return Participant{
		GameID:   g.ID,
		UserID:   userID,
		Cash:     g.InitialAmount,
		Holdings: map[string]int64{},
		JoinedAt: now,
	}
}

func (p Participant) Clone() Participant {
	out := p
	out.Holdings = maps.Clone(p.Holdings)
	if out.Holdings == nil {
		out.Holdings = map[string]int64{}
	}
	return out
}

func (p Participant) Quantity(symbol string) int64 {
	return p.Holdings[symbol]
}

// Symbols returns the held symbols in sorted order.
func (p Participant) Symbols() []string {
	out := make([]string, 0, len(p.Holdings))
	for s := range p.Holdings {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type Trade struct {
	ID         string
	GameID     string
	UserID     string
	Side       Side
	Symbol     string
	Quantity   int64
	Price      decimal.Decimal
	Total      decimal.Decimal
	ExecutedAt time.Time
}

func ValidateGameID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return ErrGameNotFound
	}
	return nil
}

func validateGameName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > MaxGameNameLength {
		return fmt.Errorf("name too long (max %d chars)", MaxGameNameLength)
	}
	return nil
}
