package cli

import (
	"errors"
	"fmt"
	"io"

	"trivia-quiz/internal/config"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/transport/terminal"

	"github.com/spf13/cobra"
)

// NewHistoryCmd prints the most recent rounds.
func NewHistoryCmd(configPath *string) *cobra.Command {
	var player string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent quiz results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			rt, err := newDeps(cmd.Context(), cfg, depsOptions{offline: true, console: io.Discard})
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.service.History(cmd.Context(), player)
			if errors.Is(err, domain.ErrStorageUnavailable) {
				fmt.Fprintln(cmd.OutOrStdout(), "History is unavailable.")
				return nil
			}
			if err != nil {
				return err
			}
			return terminal.PrintHistory(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "player whose history to show")
	return cmd
}
