package api

import (
	"net/http"

	"stockgame/internal/apperr"
	"stockgame/internal/game"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	session, err := s.auth.Register(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":   session.Token,
		"message": "User signed up successfully",
		"user":    newUserView(session.User),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	session, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   session.Token,
		"message": "User logged in successfully",
		"user":    newUserView(session.User),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	u, err := s.auth.Profile(r.Context(), user.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(u)})
}

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.market.Instruments(r.Context())
	if err != nil {
		s.writeAppError(w, r, apperr.Wrap(err, "list instruments"))
		return
	}
	out := make([]instrumentView, 0, len(instruments))
	for _, in := range instruments {
		out = append(out, newInstrumentView(in))
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": out})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var in createGameRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := validateRequest(in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	start, end, err := in.times()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	g, err := s.game.CreateGame(r.Context(), game.CreateGameInput{
		Name:          in.Name,
		StartTime:     start,
		EndTime:       end,
		InitialAmount: in.InitialAmount,
		CreatedBy:     user.UserID,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGameView(g, s.now(), true))
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), 1)
	if err != nil {
		s.writeAppError(w, r, apperr.Validation("page must be a positive integer"))
		return
	}
	limit, err := queryInt(q.Get("limit"), game.DefaultPageSize)
	if err != nil {
		s.writeAppError(w, r, apperr.Validationf("limit must be between 1 and %d", game.MaxPageSize))
		return
	}
	out, err := s.game.List(r.Context(), page, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	now := s.now()
	games := make([]gameView, 0, len(out.Games))
	for _, g := range out.Games {
		games = append(games, newGameView(g, now, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"games": games,
		"page":  out.Page,
		"limit": out.Limit,
		"total": out.Total,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.game.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGameView(g, s.now(), true))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p, err := s.game.Register(r.Context(), chi.URLParam(r, "id"), user.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newParticipantView(p))
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, game.SideBuy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, game.SideSell)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, side game.Side) {
	user, err := userFromContext(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var in tradeRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := validateRequest(in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	trade := game.TradeInput{
		GameID:   chi.URLParam(r, "id"),
		UserID:   user.UserID,
		Symbol:   in.StockSymbol,
		Quantity: in.Quantity,
	}
	var res game.TradeResult
	if side == game.SideBuy {
		res, err = s.game.Buy(r.Context(), trade)
	} else {
		res, err = s.game.Sell(r.Context(), trade)
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.stream.Publish(res.Trade.GameID, newTradeView(res.Trade))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     res.Message,
		"participant": newParticipantView(res.Participant),
		"trade":       newTradeView(res.Trade),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	pf, err := s.game.Portfolio(r.Context(), chi.URLParam(r, "id"), user.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPortfolioView(pf))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	limit, err := queryInt(r.URL.Query().Get("limit"), game.MaxPageSize)
	if err != nil {
		s.writeAppError(w, r, apperr.Validationf("limit must be between 1 and %d", game.MaxPageSize))
		return
	}
	trades, err := s.game.Trades(r.Context(), chi.URLParam(r, "id"), user.UserID, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		out = append(out, newTradeView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": out})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.game.Leaderboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := make([]leaderboardRowView, 0, len(rows))
	for _, row := range rows {
		out = append(out, leaderboardRowView{
			Rank:     row.Rank,
			UserID:   row.UserID,
			Cash:     row.Cash.InexactFloat64(),
			NetWorth: row.NetWorth.InexactFloat64(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (s *Server) handleGameStream(w http.ResponseWriter, r *http.Request) {
	g, err := s.game.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.stream.Serve(w, r, g.ID)
}
