package api

import (
	"time"

	"stockgame/internal/auth"
	"stockgame/internal/game"
	"stockgame/internal/market"
)

// Money is rendered as JSON numbers. decimal.Decimal would otherwise marshal as
// a quoted string.

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserView(u auth.User) userView {
	return userView{ID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt}
}

type participantView struct {
	GameID   string           `json:"gameId"`
	UserID   string           `json:"userId"`
	Cash     float64          `json:"cash"`
	Holdings map[string]int64 `json:"holdings"`
	Version  int64            `json:"version"`
	JoinedAt time.Time        `json:"joinedAt"`
}

func newParticipantView(p game.Participant) participantView {
	holdings := make(map[string]int64, len(p.Holdings))
	for sym, qty := range p.Holdings {
		if qty > 0 {
			holdings[sym] = qty
		}
	}
	return participantView{
		GameID:   p.GameID,
		UserID:   p.UserID,
		Cash:     p.Cash.InexactFloat64(),
		Holdings: holdings,
		Version:  p.Version,
		JoinedAt: p.JoinedAt,
	}
}

type gameView struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	StartTime        time.Time         `json:"startTime"`
	EndTime          time.Time         `json:"endTime"`
	InitialAmount    float64           `json:"initialAmount"`
	Status           game.Status       `json:"status"`
	CreatedBy        string            `json:"createdBy,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	ParticipantCount int               `json:"participantCount"`
	Participants     []participantView `json:"participants,omitempty"`
}

func newGameView(g game.Game, now time.Time, withRoster bool) gameView {
	out := gameView{
		ID:               g.ID,
		Name:             g.Name,
		StartTime:        g.StartTime,
		EndTime:          g.EndTime,
		InitialAmount:    g.InitialAmount.InexactFloat64(),
		Status:           g.Status(now),
		CreatedBy:        g.CreatedBy,
		CreatedAt:        g.CreatedAt,
		ParticipantCount: g.ParticipantCount,
	}
	if withRoster {
		out.Participants = make([]participantView, 0, len(g.Participants))
		for _, p := range g.Participants {
			out.Participants = append(out.Participants, newParticipantView(p))
		}
		out.ParticipantCount = len(out.Participants)
	}
	return out
}

type tradeView struct {
	ID         string    `json:"id"`
	GameID     string    `json:"gameId"`
	UserID     string    `json:"userId"`
	Side       game.Side `json:"side"`
	Symbol     string    `json:"stockSymbol"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Total      float64   `json:"total"`
	ExecutedAt time.Time `json:"executedAt"`
}

func newTradeView(t game.Trade) tradeView {
	return tradeView{
		ID:         t.ID,
		GameID:     t.GameID,
		UserID:     t.UserID,
		Side:       t.Side,
		Symbol:     t.Symbol,
		Quantity:   t.Quantity,
		Price:      t.Price.InexactFloat64(),
		Total:      t.Total.InexactFloat64(),
		ExecutedAt: t.ExecutedAt,
	}
}

type holdingView struct {
	Symbol   string  `json:"stockSymbol"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
}

type portfolioView struct {
	GameID        string        `json:"gameId"`
	UserID        string        `json:"userId"`
	Cash          float64       `json:"cash"`
	Holdings      []holdingView `json:"holdings"`
	HoldingsValue float64       `json:"holdingsValue"`
	NetWorth      float64       `json:"netWorth"`
}

func newPortfolioView(p game.Portfolio) portfolioView {
	out := portfolioView{
		GameID:        p.GameID,
		UserID:        p.UserID,
		Cash:          p.Cash.InexactFloat64(),
		Holdings:      make([]holdingView, 0, len(p.Holdings)),
		HoldingsValue: p.HoldingsValue.InexactFloat64(),
		NetWorth:      p.NetWorth.InexactFloat64(),
	}
	for _, h := range p.Holdings {
		out.Holdings = append(out.Holdings, holdingView{
			Symbol:   h.Symbol,
			Quantity: h.Quantity,
			Price:    h.Price.InexactFloat64(),
			Value:    h.Value.InexactFloat64(),
		})
	}
	return out
}

type leaderboardRowView struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"userId"`
	Cash     float64 `json:"cash"`
	NetWorth float64 `json:"netWorth"`
}

type instrumentView struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

func newInstrumentView(in market.Instrument) instrumentView {
	return instrumentView{Symbol: in.Symbol, Name: in.Name, Price: in.Price.InexactFloat64()}
}
