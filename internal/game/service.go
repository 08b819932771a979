package game

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"stockgame/internal/apperr"
	"stockgame/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	store  Store
	prices market.Source
	log    *slog.Logger
	now    func() time.Time
}

func NewService(store Store, prices market.Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		prices: prices,
		log:    logger,
		now:    time.Now,
	}
}

func (s *Service) CreateGame(ctx context.Context, in CreateGameInput) (Game, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateGameName(in.Name); err != nil {
		return Game{}, apperr.Validation(err.Error())
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return Game{}, apperr.Validation("startTime and endTime are required")
	}
	if !in.EndTime.After(in.StartTime) {
		return Game{}, apperr.Validation("endTime must be after startTime")
	}
	if !in.InitialAmount.IsPositive() {
		return Game{}, apperr.Validation("initialAmount must be greater than 0")
	}
	if in.InitialAmount.GreaterThan(MaxAmount) {
		return Game{}, apperr.Validationf("initialAmount must not exceed %s", MaxAmount.String())
	}

	g := Game{
		ID:            uuid.NewString(),
		Name:          in.Name,
		StartTime:     in.StartTime.UTC(),
		EndTime:       in.EndTime.UTC(),
		InitialAmount: in.InitialAmount,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     s.now().UTC(),
		Participants:  []Participant{},
	}
	if err := s.store.CreateGame(ctx, g); err != nil {
		return Game{}, apperr.Wrap(err, "create game")
	}
	s.log.Info("game created", "game_id", g.ID, "name", g.Name, "created_by", g.CreatedBy)
	return g, nil
}

func (s *Service) Get(ctx context.Context, gameID string) (Game, error) {
	if err := ValidateGameID(gameID); err != nil {
		return Game{}, apperr.NotFound("Game not found")
	}
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return Game{}, mapStoreError(err, "load game")
	}
	return g, nil
}

func (s *Service) List(ctx context.Context, page, limit int) (GamePage, error) {
	if page < 1 {
		return GamePage{}, apperr.Validation("page must be a positive integer")
	}
	if limit < 1 || limit > MaxPageSize {
		return GamePage{}, apperr.Validationf("limit must be between 1 and %d", MaxPageSize)
	}
	out := GamePage{Page: page, Limit: limit, Games: []Game{}}
	offset := maxOffset
	if page-1 <= maxOffset/limit {
		offset = (page - 1) * limit
	}
	games, total, err := s.store.ListGames(ctx, offset, limit)
	if err != nil {
		return out, apperr.Wrap(err, "list games")
	}
	out.Total = total
	if games != nil {
		out.Games = games
	}
	return out, nil
}

// Register enrolls userID in the game with the game's starting cash.
func (s *Service) Register(ctx context.Context, gameID, userID string) (Participant, error) {
	g, err := s.openGame(ctx, gameID)
	if err != nil {
		return Participant{}, err
	}
	p := NewParticipant(g, userID, s.now().UTC())
	if err := s.store.AddParticipant(ctx, p); err != nil {
		return Participant{}, mapStoreError(err, "register participant")
	}
	s.log.Info("participant registered", "game_id", g.ID, "user_id", userID, "cash", p.Cash.String())
	return p, nil
}

func (s *Service) Buy(ctx context.Context, in TradeInput) (TradeResult, error) {
	return s.trade(ctx, SideBuy, in)
}

func (s *Service) Sell(ctx context.Context, in TradeInput) (TradeResult, error) {
	return s.trade(ctx, SideSell, in)
}

func (s *Service) trade(ctx context.Context, side Side, in TradeInput) (TradeResult, error) {
	var out TradeResult
	symbol := market.NormalizeSymbol(in.Symbol)
	if err := market.ValidateSymbol(symbol); err != nil {
		return out, apperr.Validation("Unknown stock symbol")
	}
	if in.Quantity <= 0 {
		return out, apperr.Validation("Quantity must be a positive integer")
	}

	g, err := s.openGame(ctx, in.GameID)
	if err != nil {
		return out, err
	}
	price, err := s.prices.Price(ctx, symbol)
	if err != nil {
		if errors.Is(err, market.ErrUnknownSymbol) {
			return out, apperr.Validation("Unknown stock symbol")
		}
		return out, apperr.Wrap(err, "resolve price")
	}

	now := s.now().UTC()
	p, tr, err := s.store.Settle(ctx, g.ID, in.UserID, func(p *Participant) (Trade, error) {
		var total decimal.Decimal
		var err error
		switch side {
		case SideBuy:
			total, err = p.ApplyBuy(symbol, in.Quantity, price)
		case SideSell:
			total, err = p.ApplySell(symbol, in.Quantity, price)
		}
		if err != nil {
			return Trade{}, err
		}
		return Trade{
			ID:         uuid.NewString(),
			GameID:     g.ID,
			UserID:     in.UserID,
			Side:       side,
			Symbol:     symbol,
			Quantity:   in.Quantity,
			Price:      price,
			Total:      total,
			ExecutedAt: now,
		}, nil
	})
	if err != nil {
		s.log.Info("trade rejected", "game_id", g.ID, "user_id", in.UserID, "side", side, "symbol", symbol, "quantity", in.Quantity, "reason", err.Error())
		return out, mapStoreError(err, "settle trade")
	}

	s.log.Info("trade settled", "game_id", g.ID, "user_id", in.UserID, "side", side, "symbol", symbol,
		"quantity", in.Quantity, "price", price.String(), "cash", p.Cash.String())
	out.Participant = p
	out.Trade = tr
	out.Message = MessagePurchased
	if side == SideSell {
		out.Message = MessageSold
	}
	return out, nil
}

func (s *Service) Participant(ctx context.Context, gameID, userID string) (Participant, error) {
	if err := ValidateGameID(gameID); err != nil {
		return Participant{}, apperr.NotFound("Game not found")
	}
	if _, err := s.store.GetGame(ctx, gameID); err != nil {
		return Participant{}, mapStoreError(err, "load game")
	}
	p, err := s.store.GetParticipant(ctx, gameID, userID)
	if err != nil {
		return Participant{}, mapStoreError(err, "load participant")
	}
	return p, nil
}

func (s *Service) Portfolio(ctx context.Context, gameID, userID string) (Portfolio, error) {
	p, err := s.Participant(ctx, gameID, userID)
	if err != nil {
		return Portfolio{}, err
	}
	return s.valuate(ctx, p)
}

func (s *Service) Trades(ctx context.Context, gameID, userID string, limit int) ([]Trade, error) {
	if limit < 1 || limit > MaxPageSize {
		return nil, apperr.Validationf("limit must be between 1 and %d", MaxPageSize)
	}
	if _, err := s.Participant(ctx, gameID, userID); err != nil {
		return nil, err
	}
	trades, err := s.store.ListTrades(ctx, gameID, userID, limit)
	if err != nil {
		return nil, apperr.Wrap(err, "list trades")
	}
	if trades == nil {
		trades = []Trade{}
	}
	return trades, nil
}

// Leaderboard ranks participants by cash plus holdings at current prices.
func (s *Service) Leaderboard(ctx context.Context, gameID string) ([]LeaderboardRow, error) {
	if err := ValidateGameID(gameID); err != nil {
		return nil, apperr.NotFound("Game not found")
	}
	if _, err := s.store.GetGame(ctx, gameID); err != nil {
		return nil, mapStoreError(err, "load game")
	}
	participants, err := s.store.ListParticipants(ctx, gameID)
	if err != nil {
		return nil, apperr.Wrap(err, "list participants")
	}
	rows := make([]LeaderboardRow, 0, len(participants))
	for _, p := range participants {
		pf, err := s.valuate(ctx, p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, LeaderboardRow{UserID: p.UserID, Cash: p.Cash, NetWorth: pf.NetWorth})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].NetWorth.Equal(rows[j].NetWorth) {
			return rows[i].NetWorth.GreaterThan(rows[j].NetWorth)
		}
		return rows[i].UserID < rows[j].UserID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func (s *Service) valuate(ctx context.Context, p Participant) (Portfolio, error) {
	out := Portfolio{
		GameID:        p.GameID,
		UserID:        p.UserID,
		Cash:          p.Cash,
		Holdings:      make([]Holding, 0, len(p.Holdings)),
		HoldingsValue: decimal.Zero,
	}
	for _, symbol := range p.Symbols() {
		qty := p.Holdings[symbol]
		price, err := s.prices.Price(ctx, symbol)
		if err != nil {
			if !errors.Is(err, market.ErrUnknownSymbol) {
				return out, apperr.Wrap(err, "resolve price")
			}
			price = decimal.Zero
		}
		value := price.Mul(decimal.NewFromInt(qty))
		out.Holdings = append(out.Holdings, Holding{Symbol: symbol, Quantity: qty, Price: price, Value: value})
		out.HoldingsValue = out.HoldingsValue.Add(value)
	}
	out.NetWorth = out.Cash.Add(out.HoldingsValue)
	return out, nil
}

func (s *Service) openGame(ctx context.Context, gameID string) (Game, error) {
	if err := ValidateGameID(gameID); err != nil {
		return Game{}, apperr.NotFound("Game not found")
	}
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return Game{}, mapStoreError(err, "load game")
	}
	if g.Status(s.now()) == StatusClosed {
		return Game{}, apperr.Domain("Game has ended")
	}
	return g, nil
}

func mapStoreError(err error, op string) error {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return apperr.NotFound("Game not found")
	case errors.Is(err, ErrNotParticipant):
		return apperr.NotFound("Player not registered for this game")
	case errors.Is(err, ErrAlreadyRegistered):
		return apperr.Conflict("User already registered for this game")
	case errors.Is(err, ErrInsufficientFunds):
		return apperr.Domain("Insufficient funds")
	case errors.Is(err, ErrInsufficientHoldings):
		return apperr.Domain("Insufficient stocks")
	case errors.Is(err, ErrInvalidQuantity):
		return apperr.Validation("Quantity must be a positive integer")
	case errors.Is(err, ErrHoldingOverflow):
		return apperr.Validation("Quantity too large")
	case errors.Is(err, ErrCashOverflow):
		return apperr.Domain("Cash balance limit exceeded")
	case errors.Is(err, ErrTxConflict):
		return apperr.Conflict("Transaction conflict, retry later")
	default:
		return apperr.Wrap(err, op)
	}
}
