package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"
)

func TestClientTradeRequest(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Stocks purchased successfully"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	out, err := c.Buy(context.Background(), "tok", "game-1", "AAPL", 3)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if out["message"] != "Stocks purchased successfully" {
		t.Fatalf("unexpected response: %v", out)
	}
	if gotPath != "/api/games/game-1/buy" || gotAuth != "Bearer tok" {
		t.Fatalf("request path=%q auth=%q", gotPath, gotAuth)
	}
	if gotBody["stockSymbol"] != "AAPL" || gotBody["quantity"] != float64(3) {
		t.Fatalf("request body = %v", gotBody)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{status: http.StatusBadRequest, body: `{"error":"Insufficient funds","stack":null}`, want: "Insufficient funds"},
		{status: http.StatusForbidden, body: `{"message":"Unauthorized"}`, want: "Unauthorized"},
		{status: http.StatusBadGateway, body: "upstream down\n", want: "upstream down"},
	}
	for _, tc := range tests {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		_, err := NewClient(ts.URL).JoinGame(context.Background(), "tok", "g")
		ts.Close()

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != tc.status || apiErr.Message != tc.want {
			t.Fatalf("APIError = %+v, want %d %q", apiErr, tc.status, tc.want)
		}
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("STK_HOME", t.TempDir())

	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("missing session err = %v, want ErrNoSession", err)
	}
	want := Session{AccessToken: "tok", Email: "a@example.com", UserID: "u-1", GameID: "g-1"}
	if err := SaveSession(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadSession()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("session = %+v, want %+v", got, want)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("after clear err = %v, want ErrNoSession", err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("clearing twice should be a no-op: %v", err)
	}
}

func TestWatchTrades(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/games/g-1/stream" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Not authorized, no token"}`))
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ {
			_ = conn.WriteJSON(map[string]any{"type": "trade", "trade": map[string]any{"quantity": i + 1}})
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer ts.Close()

	var seen []map[string]any
	err := NewClient(ts.URL).WatchTrades(context.Background(), "tok", "g-1", func(ev map[string]any) error {
		seen = append(seen, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(seen) != 2 || seen[0]["type"] != "trade" {
		t.Fatalf("events = %v", seen)
	}

	err = NewClient(ts.URL).WatchTrades(context.Background(), "bad", "g-1", func(map[string]any) error { return nil })
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestLoadSessionCorruptFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STK_HOME", dir)
	if err := os.WriteFile(filepath.Join(dir, "session.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadSession()
	if err == nil || errors.Is(err, ErrNoSession) {
		t.Fatalf("corrupt session err = %v", err)
	}
}
