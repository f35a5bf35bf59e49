package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bdobrica/Kensa/internal/kensa/auth"
	"github.com/bdobrica/Kensa/internal/kensa/orchestrator"
)

// exitKeywords end the interactive loop (case-insensitive).
var exitKeywords = map[string]struct{}{
	"exit": {},
	"quit": {},
	"q":    {},
}

// Run drives the interactive session: one login, then a query loop until an
// exit keyword or EOF. Context cancellation (e.g. SIGINT) ends the loop
// between turns.
func (a *App) Run(ctx context.Context) error {
	in := bufio.NewReader(os.Stdin)
	out := os.Stdout

	userID, err := a.login(ctx, in, out)
	if err != nil {
		return err
	}

	session := orchestrator.NewSession(userID)
	a.logger.Info("session started", "session_id", session.ID, "user_id", userID)

	for {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(out, "\nSession ended.")
			return nil
		}

		fmt.Fprint(out, "\nAsk your query (exit/quit/q): ")
		line, err := in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nSession ended.")
				return nil
			}
			return fmt.Errorf("app: read query: %w", err)
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if _, isExit := exitKeywords[strings.ToLower(query)]; isExit {
			fmt.Fprintln(out, "\nSession ended.")
			return nil
		}

		result, err := a.orchestrator.Handle(ctx, session, query)
		if err != nil {
			// LLM/storage failures terminate the turn, not the session.
			a.logger.Error("turn failed", "session_id", session.ID, "err", err)
			fmt.Fprintf(out, "\nSomething went wrong with that question: %v\n", err)
			continue
		}

		session = result.Session
		fmt.Fprintln(out, "\n"+result.Answer)
	}
}

// login prompts for credentials and resolves them to a user id. A wrong
// password for an existing username is re-prompted rather than silently
// provisioning a duplicate identity.
func (a *App) login(ctx context.Context, in *bufio.Reader, out io.Writer) (int64, error) {
	fmt.Fprintln(out, "Kensa — conversational analytics")

	for {
		fmt.Fprint(out, "Username: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("app: read username: %w", err)
		}
		username := strings.TrimSpace(line)
		if username == "" {
			continue
		}

		password, err := readPassword(in, out)
		if err != nil {
			return 0, err
		}

		userID, err := a.creds.ProvisionOrAuthenticate(ctx, username, password)
		if errors.Is(err, auth.ErrWrongPassword) {
			fmt.Fprintln(out, "Wrong password for that username, try again.")
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("app: login: %w", err)
		}
		return userID, nil
	}
}

// readPassword reads without echo when stdin is a terminal, and falls back
// to a plain line read otherwise (pipes, tests, CI).
func readPassword(in *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password (stored hashed locally): ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("app: read password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("app: read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
