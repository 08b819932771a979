package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stockgame/internal/apperr"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
}

type Session struct {
	Token string
	User  User
}

type Service struct {
	users  UserStore
	tokens *TokenIssuer
	log    *slog.Logger
	cost   int
}

func NewService(users UserStore, tokens *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		log:    logger,
		cost:   bcrypt.DefaultCost,
	}
}

// SetHashCost lowers the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) SetHashCost(cost int) {
	s.cost = cost
}

func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if err := ValidateCredentials(email, password); err != nil {
		return Session{}, err
	}
	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return Session{}, apperr.Conflict("User already exists")
	} else if !errors.Is(err, ErrUserNotFound) {
		return Session{}, apperr.Wrap(err, "lookup user")
	}

	u, err := s.newUser(email, password, false)
	if err != nil {
		return Session{}, err
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Session{}, apperr.Conflict("User already exists")
		}
		return Session{}, apperr.Wrap(err, "create user")
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, apperr.Wrap(err, "issue token")
	}
	s.log.Info("user registered", "user_id", u.ID)
	return Session{Token: token, User: u}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return Session{}, err
	}
	u, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, apperr.Validation("User not found")
		}
		return Session{}, apperr.Wrap(err, "lookup user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, apperr.Validation("Invalid password")
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, apperr.Wrap(err, "issue token")
	}
	return Session{Token: token, User: u}, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, apperr.NotFound("User not found")
		}
		return User{}, apperr.Wrap(err, "load user")
	}
	return u, nil
}

// EnsureAdmin creates the admin account if it is missing and promotes an
// existing account with the same email.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	existing, err := s.users.UserByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAdmin {
			if err := s.users.SetAdmin(ctx, existing.ID, true); err != nil {
				return User{}, fmt.Errorf("promote admin: %w", err)
			}
			existing.IsAdmin = true
		}
		return existing, nil
	case !errors.Is(err, ErrUserNotFound):
		return User{}, fmt.Errorf("lookup admin: %w", err)
	}

	u, err := s.newUser(email, password, true)
	if err != nil {
		return User{}, err
	}
	if err := s.users.CreateUser(ctx, u); err != nil && !errors.Is(err, ErrEmailTaken) {
		return User{}, fmt.Errorf("create admin: %w", err)
	}
	s.log.Info("admin account seeded", "email", email)
	return u, nil
}

func (s *Service) newUser(email, password string, isAdmin bool) (User, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, apperr.Wrap(err, "hash password")
	}
	return User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
