package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ashureev/trip-planner/internal/agent"
	"github.com/ashureev/trip-planner/internal/config"
	"github.com/ashureev/trip-planner/internal/lifecycle"
	"github.com/ashureev/trip-planner/internal/session"
	"github.com/spf13/cobra"
)

func newChatCmd(load func() (*config.Config, error)) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Plan a trip interactively from the terminal",
		Long: `Chat with the planner on stdin/stdout as the default user.

Commands:
  /state  show the current planning stage
  /new    start a new session (the saved trip is restored on the next message)
  /quit   exit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			// Keep stdout for the conversation.
			logger := newLoggerTo(os.Stderr, cfg.LogLevel)

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runChat(ctx, a.runtime, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to use (generated when empty)")
	return cmd
}

// runChat reads one message per line and prints each reply.
func runChat(ctx context.Context, rt *agent.Runtime, sessionID string, in io.Reader, out io.Writer) error {
	if sessionID == "" {
		sessionID = session.NewID()
	}
	userID := lifecycle.DefaultUserID

	fmt.Fprintf(out, "Trip planner ready (session %s). Where would you like to go?\n", sessionID)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			if err := rt.Reset(sessionID, userID); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			sessionID = session.NewID()
			fmt.Fprintf(out, "Started session %s.\n", sessionID)
			continue
		case "/state":
			s, err := rt.State(sessionID, userID)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "stage: %s\n", s.Stage())
			continue
		}

		res, err := rt.RunTurn(ctx, agent.TurnRequest{SessionID: sessionID, UserID: userID, Message: line})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, res.Reply)
	}
}
