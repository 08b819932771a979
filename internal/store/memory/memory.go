// Package memory is an in-process implementation of the game and user stores.
// It backs the API in single-node development mode and the test suites.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"stockgame/internal/auth"
	"stockgame/internal/game"
)

type participantKey struct {
	gameID string
	userID string
}

type participantSlot struct {
	mu    sync.Mutex
	state game.Participant
}

type Store struct {
	mu           sync.RWMutex
	users        map[string]auth.User
	usersByEmail map[string]string
	games        map[string]game.Game
	roster       map[string][]string
	participants map[participantKey]*participantSlot
	trades       map[participantKey][]game.Trade
}

func New() *Store {
	return &Store{
		users:        make(map[string]auth.User),
		usersByEmail: make(map[string]string),
		games:        make(map[string]game.Game),
		roster:       make(map[string][]string),
		participants: make(map[participantKey]*participantSlot),
		trades:       make(map[participantKey][]game.Trade),
	}
}

func (s *Store) CreateUser(_ context.Context, u auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.usersByEmail[email]; ok {
		return auth.ErrEmailTaken
	}
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) SetAdmin(_ context.Context, id string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.IsAdmin = isAdmin
	s.users[id] = u
	return nil
}

func (s *Store) CreateGame(_ context.Context, g game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.Participants = nil
	g.ParticipantCount = 0
	s.games[g.ID] = g
	return nil
}

func (s *Store) GetGame(_ context.Context, gameID string) (game.Game, error) {
	s.mu.RLock()
	g, ok := s.games[gameID]
	if !ok {
		s.mu.RUnlock()
		return game.Game{}, game.ErrGameNotFound
	}
	slots := s.slotsLocked(gameID)
	s.mu.RUnlock()

	g.Participants = snapshot(slots)
	g.ParticipantCount = len(g.Participants)
	return g, nil
}

func (s *Store) ListGames(_ context.Context, offset, limit int) ([]game.Game, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]game.Game, 0, len(s.games))
	for id, g := range s.games {
		g.ParticipantCount = len(s.roster[id])
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	if offset >= total {
		return []game.Game{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Store) AddParticipant(_ context.Context, p game.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[p.GameID]; !ok {
		return game.ErrGameNotFound
	}
	key := participantKey{gameID: p.GameID, userID: p.UserID}
	if _, ok := s.participants[key]; ok {
		return game.ErrAlreadyRegistered
	}
	s.participants[key] = &participantSlot{state: p.Clone()}
	s.roster[p.GameID] = append(s.roster[p.GameID], p.UserID)
	return nil
}

func (s *Store) GetParticipant(_ context.Context, gameID, userID string) (game.Participant, error) {
	slot, err := s.slot(gameID, userID)
	if err != nil {
		return game.Participant{}, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.state.Clone(), nil
}

func (s *Store) ListParticipants(_ context.Context, gameID string) ([]game.Participant, error) {
	s.mu.RLock()
	if _, ok := s.games[gameID]; !ok {
		s.mu.RUnlock()
		return nil, game.ErrGameNotFound
	}
	slots := s.slotsLocked(gameID)
	s.mu.RUnlock()
	return snapshot(slots), nil
}

// Settle holds the participant's own mutex for the whole read-modify-write, so
// concurrent settlements on one participant run one at a time while other
// participants proceed in parallel.
func (s *Store) Settle(_ context.Context, gameID, userID string, fn func(p *game.Participant) (game.Trade, error)) (game.Participant, game.Trade, error) {
	slot, err := s.slot(gameID, userID)
	if err != nil {
		return game.Participant{}, game.Trade{}, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()

	next := slot.state.Clone()
	tr, err := fn(&next)
	if err != nil {
		return slot.state.Clone(), game.Trade{}, err
	}
	next.Version = slot.state.Version + 1
	slot.state = next

	key := participantKey{gameID: gameID, userID: userID}
	s.mu.Lock()
	s.trades[key] = append(s.trades[key], tr)
	s.mu.Unlock()
	return next.Clone(), tr, nil
}

func (s *Store) ListTrades(_ context.Context, gameID, userID string, limit int) ([]game.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.trades[participantKey{gameID: gameID, userID: userID}]
	out := make([]game.Trade, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) slot(gameID, userID string) (*participantSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.games[gameID]; !ok {
		return nil, game.ErrGameNotFound
	}
	slot, ok := s.participants[participantKey{gameID: gameID, userID: userID}]
	if !ok {
		return nil, game.ErrNotParticipant
	}
	return slot, nil
}

func (s *Store) slotsLocked(gameID string) []*participantSlot {
	ids := s.roster[gameID]
	out := make([]*participantSlot, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.participants[participantKey{gameID: gameID, userID: id}])
	}
	return out
}

func snapshot(slots []*participantSlot) []game.Participant {
	out := make([]game.Participant, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		out = append(out, slot.state.Clone())
		slot.mu.Unlock()
	}
	return out
}
