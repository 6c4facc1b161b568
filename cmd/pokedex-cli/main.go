// Command pokedex-cli manages a pokedex session from the terminal.
//
// Usage:
//
//	pokedex-cli [flags] register <username> <email> <password>
//	pokedex-cli [flags] login <email> <password>
//	pokedex-cli [flags] logout
//	pokedex-cli [flags] profile
//	pokedex-cli [flags] favorites
//	pokedex-cli [flags] add <pokemonId> <pokemonName> [image]
//	pokedex-cli [flags] remove <pokemonId>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"pokedex/internal/logging"
	"pokedex/internal/models"
	"pokedex/internal/session"
)

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pokedex-session.db"
	}
	return filepath.Join(dir, "pokedex", "session.db")
}

func main() {
	serverURL := flag.String("server", envOr("POKEDEX_API", "http://localhost:8080/api"), "API base URL")
	sessionPath := flag.String("session", envOr("POKEDEX_SESSION", defaultSessionPath()), "session database file")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if err := run(*serverURL, *sessionPath, *timeout, *verbose, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(serverURL, sessionPath string, timeout time.Duration, verbose bool, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("missing command (register, login, logout, profile, favorites, add, remove)")
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := os.MkdirAll(filepath.Dir(sessionPath), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	store, err := session.OpenSQLiteStore(sessionPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	state := session.New(session.NewHTTPClient(serverURL, nil, timeout), store, log)
	if err := state.Restore(ctx); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		if len(rest) != 3 {
			return errors.New("usage: register <username> <email> <password>")
		}
		account, err := state.Register(ctx, rest[0], rest[1], rest[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "registered %s, now run: login %s <password>\n", account.Username, account.Email)

	case "login":
		if len(rest) != 2 {
			return errors.New("usage: login <email> <password>")
		}
		account, err := state.Login(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in as %s\n", account.Username)
		printExpiry(out, state)

	case "logout":
		if err := state.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "logged out")

	case "profile":
		account, err := state.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "username: %s\nemail:    %s\n", account.Username, account.Email)
		if account.ProfileImage != "" {
			fmt.Fprintf(out, "picture:  %s\n", account.ProfileImage)
		}
		fmt.Fprintf(out, "favorites: %d\n", len(account.Favorites))
		printExpiry(out, state)

	case "favorites":
		if !state.LoggedIn() {
			return session.ErrNotLoggedIn
		}
		printFavorites(out, state.Favorites())

	case "add":
		if len(rest) < 2 || len(rest) > 3 {
			return errors.New("usage: add <pokemonId> <pokemonName> [image]")
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("pokemonId must be a number: %w", err)
		}
		entry := models.FavoriteEntry{PokemonID: id, PokemonName: rest[1]}
		if len(rest) == 3 {
			entry.Image = rest[2]
		}
		if _, err := state.AddFavorite(ctx, entry); err != nil {
			return err
		}
		printFavorites(out, state.Favorites())

	case "remove":
		if len(rest) != 1 {
			return errors.New("usage: remove <pokemonId>")
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("pokemonId must be a number: %w", err)
		}
		if _, err := state.RemoveFavorite(ctx, id); err != nil {
			return err
		}
		printFavorites(out, state.Favorites())

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func printFavorites(out io.Writer, favorites models.Favorites) {
	if len(favorites) == 0 {
		fmt.Fprintln(out, "no favorites yet")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, f := range favorites {
		fmt.Fprintf(w, "%d\t%s\n", f.PokemonID, f.PokemonName)
	}
	_ = w.Flush()
}

func printExpiry(out io.Writer, state *session.State) {
	if exp, ok := state.ExpiresAt(); ok {
		fmt.Fprintf(out, "session expires %s\n", exp.Local().Format(time.RFC1123))
	}
}
