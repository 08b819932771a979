package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"stockgame/internal/market"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type userPayload struct {
	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		IsAdmin   bool      `json:"isAdmin"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"user"`
}

type stockRow struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

type stocksPayload struct {
	Stocks []stockRow `json:"stocks"`
}

type participantRow struct {
	GameID   string           `json:"gameId"`
	UserID   string           `json:"userId"`
	Cash     float64          `json:"cash"`
	Holdings map[string]int64 `json:"holdings"`
}

type gameRow struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	StartTime        time.Time        `json:"startTime"`
	EndTime          time.Time        `json:"endTime"`
	InitialAmount    float64          `json:"initialAmount"`
	Status           string           `json:"status"`
	ParticipantCount int              `json:"participantCount"`
	Participants     []participantRow `json:"participants"`
}

type gamesPayload struct {
	Games []gameRow `json:"games"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Total int       `json:"total"`
}

type tradeRow struct {
	Side       string    `json:"side"`
	Symbol     string    `json:"stockSymbol"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Total      float64   `json:"total"`
	ExecutedAt time.Time `json:"executedAt"`
}

type tradeResultPayload struct {
	Message     string         `json:"message"`
	Participant participantRow `json:"participant"`
	Trade       tradeRow       `json:"trade"`
}

type tradesPayload struct {
	Trades []tradeRow `json:"trades"`
}

type portfolioPayload struct {
	Cash     float64 `json:"cash"`
	Holdings []struct {
		Symbol   string  `json:"stockSymbol"`
		Quantity int64   `json:"quantity"`
		Price    float64 `json:"price"`
		Value    float64 `json:"value"`
	} `json:"holdings"`
	HoldingsValue float64 `json:"holdingsValue"`
	NetWorth      float64 `json:"netWorth"`
}

type streamPayload struct {
	Type  string   `json:"type"`
	Trade tradeRow `json:"trade"`
}

type leaderboardPayload struct {
	Rows []struct {
		Rank     int     `json:"rank"`
		UserID   string  `json:"userId"`
		Cash     float64 `json:"cash"`
		NetWorth float64 `json:"netWorth"`
	} `json:"rows"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptPassword reads without echo when stdin is a terminal.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptFloat(label string, min float64) (float64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			printWarn("Enter a valid number.")
			continue
		}
		if v <= min {
			printWarn(fmt.Sprintf("Value must be > %.2f", min))
			continue
		}
		return v, nil
	}
}

func promptTime(label string, fallback time.Time) (time.Time, error) {
	for {
		fmt.Printf("%s [%s]: ", label, fallback.Format(time.RFC3339))
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return time.Time{}, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return fallback, nil
		}
		t, err := time.Parse(time.RFC3339, text)
		if err != nil {
			printWarn("Use RFC3339, e.g. 2030-01-02T15:04:05Z.")
			continue
		}
		return t, nil
	}
}

func parseSymbol(raw string) (string, error) {
	symbol := market.NormalizeSymbol(raw)
	if err := market.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	return symbol, nil
}

func parseQuantity(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("quantity must be a positive whole number, got %q", raw)
	}
	return v, nil
}

func renderProfile(raw map[string]any) error {
	p, err := decodeInto[userPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== PROFILE ==")
	fmt.Printf("Email:    %s\n", p.User.Email)
	fmt.Printf("User ID:  %s\n", p.User.ID)
	role := "player"
	if p.User.IsAdmin {
		role = "admin"
	}
	fmt.Printf("Role:     %s\n", role)
	fmt.Printf("Joined:   %s\n\n", p.User.CreatedAt.Local().Format(time.DateTime))
	return nil
}

func renderStocks(raw map[string]any) error {
	payload, err := decodeInto[stocksPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== STOCK MARKET ==")
	if len(payload.Stocks) == 0 {
		printInfo("No stocks listed.")
		return nil
	}
	fmt.Printf("%-8s %-26s %14s\n", "SYMBOL", "NAME", "PRICE")
	for _, s := range payload.Stocks {
		fmt.Printf("%-8s %-26s %14s\n", s.Symbol, truncate(s.Name, 26), formatMoney(s.Price))
	}
	fmt.Println()
	return nil
}

func renderGames(raw map[string]any) error {
	payload, err := decodeInto[gamesPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== GAMES (page %d, %d total) ==\n", payload.Page, payload.Total)
	if len(payload.Games) == 0 {
		printInfo("No games on this page.")
		return nil
	}
	fmt.Printf("%-36s %-22s %-7s %14s %8s %-16s\n", "ID", "NAME", "STATUS", "START CASH", "PLAYERS", "ENDS")
	for _, g := range payload.Games {
		fmt.Printf("%-36s %-22s %-7s %14s %8d %-16s\n",
			g.ID,
			truncate(g.Name, 22),
			colorizeStatus(g.Status),
			formatMoney(g.InitialAmount),
			g.ParticipantCount,
			g.EndTime.Local().Format("2006-01-02 15:04"),
		)
	}
	fmt.Println()
	return nil
}

func renderGame(raw map[string]any) error {
	g, err := decodeInto[gameRow](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s ==\n", strings.ToUpper(g.Name))
	fmt.Printf("ID:          %s\n", g.ID)
	fmt.Printf("Status:      %s\n", colorizeStatus(g.Status))
	fmt.Printf("Window:      %s -> %s\n", g.StartTime.Local().Format("2006-01-02 15:04"), g.EndTime.Local().Format("2006-01-02 15:04"))
	fmt.Printf("Start cash:  %s\n", formatMoney(g.InitialAmount))
	fmt.Printf("Players:     %d\n", g.ParticipantCount)
	if len(g.Participants) > 0 {
		fmt.Println()
		fmt.Printf("%-36s %14s %8s\n", "PLAYER", "CASH", "SYMBOLS")
		for _, p := range g.Participants {
			fmt.Printf("%-36s %14s %8d\n", p.UserID, formatMoney(p.Cash), len(p.Holdings))
		}
	}
	fmt.Println()
	return nil
}

func renderParticipant(raw map[string]any) error {
	p, err := decodeInto[participantRow](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Joined game %s with %s cash.", p.GameID, formatMoney(p.Cash)))
	return nil
}

func renderTradeResult(raw map[string]any) error {
	out, err := decodeInto[tradeResultPayload](raw)
	if err != nil {
		return err
	}
	printSuccess(out.Message)
	t := out.Trade
	fmt.Printf("%s %d %s @ %s = %s\n", strings.ToUpper(t.Side), t.Quantity, t.Symbol, formatMoney(t.Price), formatMoney(t.Total))
	fmt.Printf("Cash now: %s, holding %d %s\n", formatMoney(out.Participant.Cash), out.Participant.Holdings[t.Symbol], t.Symbol)
	return nil
}

func renderPortfolio(raw map[string]any) error {
	p, err := decodeInto[portfolioPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== PORTFOLIO ==")
	fmt.Printf("Cash:            %s\n", formatMoney(p.Cash))
	fmt.Printf("Holdings value:  %s\n", formatMoney(p.HoldingsValue))
	fmt.Printf("Net worth:       %s\n", formatMoney(p.NetWorth))
	fmt.Println()
	if len(p.Holdings) == 0 {
		printInfo("No holdings yet.")
		return nil
	}
	fmt.Printf("%-8s %10s %12s %14s\n", "SYMBOL", "QTY", "PRICE", "VALUE")
	for _, h := range p.Holdings {
		fmt.Printf("%-8s %10d %12s %14s\n", h.Symbol, h.Quantity, formatMoney(h.Price), formatMoney(h.Value))
	}
	fmt.Println()
	return nil
}

func renderTrades(raw map[string]any) error {
	p, err := decodeInto[tradesPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== TRADES ==")
	if len(p.Trades) == 0 {
		printInfo("No trades yet.")
		return nil
	}
	fmt.Printf("%-16s %-5s %-8s %8s %12s %14s\n", "TIME", "SIDE", "SYMBOL", "QTY", "PRICE", "TOTAL")
	for _, t := range p.Trades {
		fmt.Printf("%-16s %-5s %-8s %8d %12s %14s\n",
			t.ExecutedAt.Local().Format("2006-01-02 15:04"),
			colorizeSide(t.Side),
			t.Symbol,
			t.Quantity,
			formatMoney(t.Price),
			formatMoney(t.Total),
		)
	}
	fmt.Println()
	return nil
}

func renderLeaderboard(raw map[string]any) error {
	out, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== LEADERBOARD ==")
	if len(out.Rows) == 0 {
		printInfo("No players yet.")
		return nil
	}
	fmt.Printf("%-6s %-36s %14s %14s\n", "RANK", "PLAYER", "CASH", "NET WORTH")
	for _, row := range out.Rows {
		fmt.Printf("%-6d %-36s %14s %14s\n", row.Rank, row.UserID, formatMoney(row.Cash), formatMoney(row.NetWorth))
	}
	fmt.Println()
	return nil
}

func renderStreamEvent(ev map[string]any) error {
	payload, err := decodeInto[streamPayload](ev)
	if err != nil {
		return err
	}
	t := payload.Trade
	fmt.Printf("%s %s %d %s @ %s\n",
		t.ExecutedAt.Local().Format(time.TimeOnly),
		colorizeSide(t.Side),
		t.Quantity,
		t.Symbol,
		formatMoney(t.Price),
	)
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizeStatus(status string) string {
	if status == "open" {
		return success.Sprint(status)
	}
	return danger.Sprint(status)
}

func colorizeSide(side string) string {
	if side == "buy" {
		return success.Sprint(side)
	}
	return danger.Sprint(side)
}

func formatMoney(v float64) string {
	fixed := decimal.NewFromFloat(v).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return sign + fixed
	}
	return sign + comma(n) + "." + frac
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
