package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/adapters/loam"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowfile"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatflow",
	Short: "Chatflow validates and previews chatbot conversation flows",
	Long: `Chatflow checks that a chatbot flow has a single entry point, points out
disconnected nodes, and lets you chat with the flow before publishing it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the flow library")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
}

// newLogger builds the stderr logger selected by --log-level.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", raw, err)
	}
	return logging.New(level), nil
}

// openLibrary opens the --dir flow library.
func openLibrary(cmd *cobra.Command) (*loam.Loader, error) {
	dir, _ := cmd.Flags().GetString("dir")
	return loam.Open(dir)
}

// loadFlow resolves the single argument as a flow file, falling back to a
// flow id in the --dir library.
func loadFlow(cmd *cobra.Command, arg string) (domain.Flow, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return flowfile.Load(arg)
	}
	lib, err := openLibrary(cmd)
	if err != nil {
		return domain.Flow{}, err
	}
	flow, err := lib.GetFlow(context.Background(), arg)
	if errors.Is(err, domain.ErrFlowNotFound) {
		return domain.Flow{}, fmt.Errorf("%q is neither a flow file nor a flow in the library: %w", arg, err)
	}
	return flow, err
}
