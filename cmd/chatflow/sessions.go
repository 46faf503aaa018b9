package main

import (
	"encoding/json"
	"fmt"
	"os"

	redisAdapter "github.com/aretw0/chatflow/pkg/adapters/redis"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect preview sessions kept in Redis",
	Long:  `List, inspect and remove preview session snapshots written by 'chatflow serve --redis'.`,
}

var sessionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List preview sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := getStore(cmd)
		defer store.Close()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No preview sessions found.")
			return nil
		}
		for _, s := range sessions {
			fmt.Fprintln(cmd.OutOrStdout(), "- "+s)
		}
		return nil
	},
}

var sessionsInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the last snapshot of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := getStore(cmd)
		defer store.Close()

		state, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}

		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling state: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := getStore(cmd)
		defer store.Close()

		var failed bool
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed = true
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
		}
		if failed {
			return fmt.Errorf("some sessions could not be removed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsLsCmd)
	sessionsCmd.AddCommand(sessionsInspectCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
	sessionsCmd.PersistentFlags().String("redis", "localhost:6379", "Redis address")
}

func getStore(cmd *cobra.Command) *redisAdapter.Store {
	addr, _ := cmd.Flags().GetString("redis")
	return redisAdapter.New(addr, os.Getenv("CHATFLOW_REDIS_PASSWORD"), 0)
}
