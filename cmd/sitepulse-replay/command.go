package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sitepulse/internal/platform/logger"
)

func newRootCommand() *cobra.Command {
	var (
		logLevel string
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "sitepulse-replay <scenario.yaml>",
		Short: "Replay a browser signal scenario and print the emitted events",
		Long: "Replays the signals of a YAML scenario through an analytics session " +
			"with the given consent, and prints each back-end call as one JSON line.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if verbose {
				level = "debug"
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), "text", level)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open scenario: %w", err)
			}
			defer f.Close()

			sc, err := LoadScenario(f)
			if err != nil {
				return err
			}
			return Replay(cmd.Context(), sc, cmd.OutOrStdout(), log)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "shorthand for --log-level=debug")
	return cmd
}
