package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoSession means the user has not logged in on this machine, or logged out.
var ErrNoSession = errors.New("no saved session, run `stk login`")

const sessionFile = "session.json"

// Session is what `stk login` leaves behind: the bearer token, who it belongs
// to, and the game that trade commands default to.
type Session struct {
	AccessToken string `json:"access_token"`
	Email       string `json:"email"`
	UserID      string `json:"user_id"`
	IsAdmin     bool   `json:"is_admin"`
	GameID      string `json:"game_id,omitempty"`
}

// stateDir is $STK_HOME when set, otherwise ~/.stk.
func stateDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("STK_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".stk"), nil
}

// SaveSession replaces the stored session. The file is written next to the
// old one and renamed over it, so a crash never leaves half a token behind.
func SaveSession(s Session) error {
	dir, err := stateDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, sessionFile+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, sessionFile))
}

func LoadSession() (Session, error) {
	dir, err := stateDir()
	if err != nil {
		return Session{}, err
	}
	body, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("corrupt session file: %w", err)
	}
	if strings.TrimSpace(s.AccessToken) == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// ClearSession forgets the token. Logging out twice is fine.
func ClearSession() error {
	dir, err := stateDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, sessionFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
