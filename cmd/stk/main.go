package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cl "stockgame/internal/cli"
	"stockgame/internal/config"

	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "stk",
		Short:        "Stock game CLI client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL (env STK_API_BASE_URL)")

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newWhoamiCmd(&apiBase),
		newStocksCmd(&apiBase),
		newGamesCmd(&apiBase),
		newUseCmd(),
		newTradeCmd(&apiBase, "buy"),
		newTradeCmd(&apiBase, "sell"),
		newPortfolioCmd(&apiBase),
		newTradesCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newWatchCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		printError(fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requireSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

// resolveGame picks the game from args, falling back to the one selected with
// `stk use` or joined last.
func resolveGame(sess cl.Session, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	if sess.GameID != "" {
		return sess.GameID, nil
	}
	return "", errors.New("no game selected: pass a game id or run `stk use <game-id>`")
}

func saveAuth(resp cl.AuthResponse, keepGame string) error {
	return cl.SaveSession(cl.Session{
		AccessToken: resp.Token,
		Email:       resp.User.Email,
		UserID:      resp.User.ID,
		IsAdmin:     resp.User.IsAdmin,
		GameID:      keepGame,
	})
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			resp, err := newClient(apiBase).Signup(ctx, email, password)
			if err != nil {
				return err
			}
			if err := saveAuth(resp, ""); err != nil {
				return err
			}
			printSuccess(resp.Message + ". Session saved.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			resp, err := newClient(apiBase).Login(ctx, email, password)
			if err != nil {
				return err
			}
			keep := ""
			if prev, err := cl.LoadSession(); err == nil && prev.UserID == resp.User.ID {
				keep = prev.GameID
			}
			if err := saveAuth(resp, keep); err != nil {
				return err
			}
			printSuccess(resp.Message + ".")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).Profile(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderProfile(out)
		},
	}
}

func newStocksCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stocks",
		Short: "List tradable stocks and current prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).ListStocks(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderStocks(out)
		},
	}
}

func newGamesCmd(apiBase *string) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "games",
		Short: "List games",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).ListGames(ctx, sess.AccessToken, page, limit)
			if err != nil {
				return err
			}
			return renderGames(out)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "games per page")

	cmd.AddCommand(newGameShowCmd(apiBase), newGameCreateCmd(apiBase), newGameJoinCmd(apiBase))
	return cmd
}

func newGameShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [game-id]",
		Short: "Show one game and its players",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			gameID, err := resolveGame(sess, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).GetGame(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			return renderGame(out)
		},
	}
}

func newGameCreateCmd(apiBase *string) *cobra.Command {
	var name string
	var cash float64
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a game (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			if !sess.IsAdmin {
				printWarn("Your session is not an admin session; the API will likely refuse this.")
			}
			if strings.TrimSpace(name) == "" {
				if name, err = promptRequired("Game name"); err != nil {
					return err
				}
			}
			if cash <= 0 {
				if cash, err = promptFloat("Starting cash", 0); err != nil {
					return err
				}
			}
			now := time.Now().Truncate(time.Minute)
			start, err := promptTime("Start", now)
			if err != nil {
				return err
			}
			end, err := promptTime("End", start.Add(duration))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).CreateGame(ctx, sess.AccessToken, name, start, end, cash)
			if err != nil {
				return err
			}
			return renderGame(out)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "game name")
	cmd.Flags().Float64Var(&cash, "cash", 0, "starting cash per player")
	cmd.Flags().DurationVar(&duration, "duration", 7*24*time.Hour, "default game length when no end is entered")
	return cmd
}

func newGameJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join <game-id>",
		Short: "Register for a game and make it the current game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).JoinGame(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			sess.GameID = args[0]
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			return renderParticipant(out)
		},
	}
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <game-id>",
		Short: "Select the game that trade commands act on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			sess.GameID = strings.TrimSpace(args[0])
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			printSuccess("Current game set to " + sess.GameID + ".")
			return nil
		},
	}
}

func newTradeCmd(apiBase *string, side string) *cobra.Command {
	var gameID string
	cmd := &cobra.Command{
		Use:   side + " <symbol> <quantity>",
		Short: strings.ToUpper(side[:1]) + side[1:] + " shares in the current game",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			symbol, err := parseSymbol(args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			gid, err := resolveGame(sess, []string{gameID})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			client := newClient(apiBase)
			var out map[string]any
			if side == "buy" {
				out, err = client.Buy(ctx, sess.AccessToken, gid, symbol, qty)
			} else {
				out, err = client.Sell(ctx, sess.AccessToken, gid, symbol, qty)
			}
			if err != nil {
				return err
			}
			return renderTradeResult(out)
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "game id (defaults to the current game)")
	return cmd
}

func newPortfolioCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio [game-id]",
		Short: "Show cash, holdings and net worth",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			gameID, err := resolveGame(sess, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).Portfolio(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			return renderPortfolio(out)
		},
	}
}

func newTradesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "trades [game-id]",
		Short: "Show your trade history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			gameID, err := resolveGame(sess, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).Trades(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			return renderTrades(out)
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard [game-id]",
		Short: "Rank players by net worth",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			gameID, err := resolveGame(sess, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			out, err := newClient(apiBase).Leaderboard(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			return renderLeaderboard(out)
		},
	}
}

func newWatchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [game-id]",
		Short: "Stream trades in a game until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			gameID, err := resolveGame(sess, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			accent.Printf("Watching trades in %s (Ctrl+C to stop)\n", gameID)
			return newClient(apiBase).WatchTrades(ctx, sess.AccessToken, gameID, renderStreamEvent)
		},
	}
}
