package main

import (
	"fmt"
	"io"

	"github.com/aretw0/chatflow/internal/presentation/tui"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|flow-id>",
	Short: "Check whether a flow may be saved",
	Long: `Reports whether the flow has exactly one entry point, lists nodes that are
not connected to anything and, with --lint, payload and wiring issues.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := loadFlow(cmd, args[0])
		if err != nil {
			return err
		}
		lint, _ := cmd.Flags().GetBool("lint")
		return runValidate(cmd.OutOrStdout(), flow, lint)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("lint", false, "Also report payload and wiring issues")
}

func runValidate(w io.Writer, flow domain.Flow, lint bool) error {
	for _, n := range validator.FindDisconnectedNodes(flow.Nodes, flow.Edges) {
		fmt.Fprintf(w, "warning: node %s is not connected\n", n.ID)
	}
	if lint {
		fmt.Fprintln(w, tui.FormatIssues(validator.Lint(flow)))
	}

	if err := validator.Check(flow); err != nil {
		return err
	}
	fmt.Fprintln(w, "Flow is valid! ✅")
	return nil
}
