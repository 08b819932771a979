package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"stockgame/internal/apperr"
	"stockgame/internal/auth"
	"stockgame/internal/config"
	"stockgame/internal/game"
	"stockgame/internal/market"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const requestTimeout = 60 * time.Second

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID  string
	Email   string
	IsAdmin bool
}

type Server struct {
	cfg    config.APIConfig
	log    *slog.Logger
	auth   *auth.Service
	game   *game.Service
	market market.Book
	stream *Hub
	mux    *chi.Mux
	now    func() time.Time
}

func New(cfg config.APIConfig, logger *slog.Logger, authSvc *auth.Service, gameSvc *game.Service, book market.Book) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		auth:   authSvc,
		game:   gameSvc,
		market: book,
		stream: NewHub(logger),
		mux:    chi.NewRouter(),
		now:    time.Now,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Stream exposes the trade hub so main can close subscribers on shutdown.
func (s *Server) Stream() *Hub {
	return s.stream
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeAppError(w, r, apperr.NotFound("Not Found - "+r.URL.RequestURI()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed - "+r.Method+" "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/register", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.With(s.authMiddleware).Get("/profile", s.handleProfile)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(middleware.Timeout(requestTimeout)).Get("/api/stocks", s.handleStocks)

		r.Route("/api/games", func(r chi.Router) {
			// The stream holds its connection open, so it skips the request timeout.
			r.Get("/{id}/stream", s.handleGameStream)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))
				r.With(adminOnly).Post("/create", s.handleCreateGame)
				r.Get("/", s.handleListGames)
				r.Get("/{id}", s.handleGetGame)
				r.Post("/{id}/register", s.handleRegister)
				r.Post("/{id}/buy", s.handleBuy)
				r.Post("/{id}/sell", s.handleSell)
				r.Get("/{id}/portfolio", s.handlePortfolio)
				r.Get("/{id}/trades", s.handleTrades)
				r.Get("/{id}/leaderboard", s.handleLeaderboard)
			})
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" && websocket.IsWebSocketUpgrade(r) {
			// Browsers cannot set headers on a websocket handshake.
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
		if token == "" {
			s.writeAppError(w, r, apperr.Auth("Not authorized, no token"))
			return
		}
		claims, err := s.auth.Tokens().Parse(token)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID:  claims.UserID(),
			Email:   claims.Email,
			IsAdmin: claims.IsAdmin,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromContext(r.Context())
		if err != nil || !user.IsAdmin {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// recoverer turns a handler panic into the usual JSON error body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.log.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()), "request_id", middleware.GetReqID(r.Context()))
			if websocket.IsWebSocketUpgrade(r) {
				return
			}
			s.writeAppError(w, r, apperr.Wrap(fmt.Errorf("panic: %v", rec), "handler panic"))
		}()
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, apperr.Auth("Not authorized, no token")
	}
	return user, nil
}

type errorBody struct {
	Error string  `json:"error"`
	Stack *string `json:"stack"`
}

// mapErrorToResponse is the single translation from service errors to HTTP.
func mapErrorToResponse(err error, exposeDetail bool) (int, errorBody) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConflict, apperr.KindDomain:
		status = http.StatusBadRequest
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}

	body := errorBody{Error: apperr.Message(err)}
	if status == http.StatusInternalServerError && !exposeDetail {
		body.Error = "Internal Server Error"
	}
	if exposeDetail {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			if st := ae.Stack(); st != "" {
				body.Stack = &st
			}
		}
	}
	return status, body
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapErrorToResponse(err, s.cfg.ExposeErrorDetail())
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error(),
			"request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validationf("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
