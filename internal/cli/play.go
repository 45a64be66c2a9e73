package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"trivia-quiz/internal/config"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/transport/terminal"

	"github.com/spf13/cobra"
)

// NewPlayCmd plays one round in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var (
		difficulty string
		player     string
		offline    bool
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a timed quiz round in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if difficulty == "" {
				difficulty = cfg.Quiz.Difficulty
			}
			d, err := domain.ParseDifficulty(difficulty)
			if err != nil {
				return err
			}

			opts := depsOptions{offline: offline, console: io.Discard}
			if verbose {
				opts.console = cmd.ErrOrStderr()
			}
			rt, err := newDeps(ctx, cfg, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			console := terminal.NewConsole(rt.service, cmd.InOrStdin(), cmd.OutOrStdout(), player)
			err = console.Play(ctx, d)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", "", "easy, medium or hard (default from config)")
	cmd.Flags().StringVar(&player, "player", "", "name to keep history under")
	cmd.Flags().BoolVar(&offline, "offline", false, "use the built-in question bank instead of Open Trivia DB")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr while playing")
	return cmd
}
