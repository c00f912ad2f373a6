package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/intent"
)

// nlClassifying guards against classify -> execute -> classify recursion.
var nlClassifying bool

func newNLCmd(env func() *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:                "nl [query...]",
		Short:              "Classify a natural language query into a sprintforge command and run it",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNaturalLanguage(cmd, env().logger, args)
		},
	}
}

func runNaturalLanguage(cmd *cobra.Command, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	if nlClassifying {
		return fmt.Errorf("unknown command %q", args[0])
	}

	query := strings.Join(args, " ")
	logger.Info("classifying natural language input", "query", query)

	result, err := intent.Classify(cmd.Context(), query)
	if err != nil {
		if errors.Is(err, intent.ErrNoClaude) {
			return fmt.Errorf("unknown command %q (install claude CLI to enable natural language mode)", args[0])
		}
		return fmt.Errorf("could not interpret %q as a sprintforge command: %w", query, err)
	}

	if len(result.Argv) == 0 {
		return fmt.Errorf("could not interpret %q as a sprintforge command (empty classification)", query)
	}

	sub := result.Argv[0]
	found := false
	for _, c := range cmd.Root().Commands() {
		if c.Name() == sub {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("could not interpret %q as a sprintforge command (resolved to unknown subcommand %q)", query, sub)
	}

	fmt.Fprintf(os.Stderr, "=> sprintforge %s\n", strings.Join(result.Argv, " "))

	nlClassifying = true
	defer func() { nlClassifying = false }()

	cmd.Root().SetArgs(result.Argv)
	return cmd.Root().Execute()
}
