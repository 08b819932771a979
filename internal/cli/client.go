package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type AuthResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	User    struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		IsAdmin bool   `json:"isAdmin"`
	} `json:"user"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (c *Client) Signup(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/api/users/register", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/api/users/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/users/profile", accessToken, nil, &out)
	return out, err
}

func (c *Client) ListStocks(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/stocks", accessToken, nil, &out)
	return out, err
}

func (c *Client) ListGames(ctx context.Context, accessToken string, page, limit int) (map[string]any, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/games?"+q.Encode(), accessToken, nil, &out)
	return out, err
}

func (c *Client) GetGame(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, ""), accessToken, nil, &out)
	return out, err
}

func (c *Client) CreateGame(ctx context.Context, accessToken, name string, start, end time.Time, initialAmount float64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/api/games/create", accessToken, map[string]any{
		"name":          name,
		"startTime":     start.UTC().Format(time.RFC3339),
		"endTime":       end.UTC().Format(time.RFC3339),
		"initialAmount": initialAmount,
	}, &out)
	return out, err
}

func (c *Client) JoinGame(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, "register"), accessToken, nil, &out)
	return out, err
}

func (c *Client) Buy(ctx context.Context, accessToken, gameID, symbol string, quantity int64) (map[string]any, error) {
	return c.trade(ctx, accessToken, gameID, "buy", symbol, quantity)
}

func (c *Client) Sell(ctx context.Context, accessToken, gameID, symbol string, quantity int64) (map[string]any, error) {
	return c.trade(ctx, accessToken, gameID, "sell", symbol, quantity)
}

func (c *Client) trade(ctx context.Context, accessToken, gameID, side, symbol string, quantity int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, side), accessToken, map[string]any{
		"stockSymbol": symbol,
		"quantity":    quantity,
	}, &out)
	return out, err
}

func (c *Client) Portfolio(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, "portfolio"), accessToken, nil, &out)
	return out, err
}

func (c *Client) Trades(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, "trades"), accessToken, nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, "leaderboard"), accessToken, nil, &out)
	return out, err
}

func gamePath(gameID, action string) string {
	p := "/api/games/" + url.PathEscape(gameID)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorMessage extracts the error text from either {"error": ...} or the
// admin guard's {"message": ...} shape.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// WatchTrades follows the trade stream of gameID and calls fn for every event
// until ctx is cancelled, the server closes the stream, or fn returns an error.
func (c *Client) WatchTrades(ctx context.Context, accessToken, gameID string, fn func(event map[string]any) error) error {
	u, err := url.Parse(c.BaseURL + gamePath(gameID, "stream"))
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
		}
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		var event map[string]any
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}
