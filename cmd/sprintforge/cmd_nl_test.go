package main

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestRunNaturalLanguage_EmptyArgs(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(logger)

	err := runNaturalLanguage(root, logger, []string{})
	if err != nil {
		t.Fatalf("expected no error for empty args, got: %v", err)
	}
}

func TestRunNaturalLanguage_RecursionGuard(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(logger)

	nlClassifying = true
	defer func() { nlClassifying = false }()

	err := runNaturalLanguage(root, logger, []string{"something"})
	if err == nil {
		t.Fatal("expected error from recursion guard")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected 'unknown command' error, got: %v", err)
	}
}

func TestRunNaturalLanguage_NoClaude(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(logger)

	t.Setenv("PATH", "")

	err := runNaturalLanguage(root, logger, []string{"start", "the", "next", "sprint"})
	if err == nil {
		t.Fatal("expected error when claude CLI is not available")
	}
	if !strings.Contains(err.Error(), "install claude CLI") {
		t.Fatalf("expected 'install claude CLI' hint, got: %v", err)
	}
}

func TestNLCmd_RegisteredOnRootCommand(t *testing.T) {
	// Checks that the root command registers the nl subcommand.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(logger)

	found := false
	for _, c := range root.Commands() {
		if c.Name() == "nl" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected root command to register the nl subcommand")
	}
}
