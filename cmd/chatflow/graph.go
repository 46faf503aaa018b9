package main

import (
	"fmt"

	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file|flow-id>",
	Short: "Export the flow as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph TD) of the flow, highlighting extra entry points and disconnected nodes.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := loadFlow(cmd, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
