package main

import (
	"github.com/aretw0/chatflow/internal/cli"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview <file|flow-id>",
	Short: "Chat with a flow in the terminal",
	Long: `Starts a preview conversation. Type messages as the user would; when the
bot shows quick replies, answer with the button number or its text.
Input piped from a file is replayed turn by turn.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := loadFlow(cmd, args[0])
		if err != nil {
			return err
		}
		level, _ := cmd.Flags().GetString("log-level")
		plain, _ := cmd.Flags().GetBool("plain")

		return cli.RunPreview(cli.PreviewOptions{
			Flow:  flow,
			Debug: level == "debug",
			Plain: plain,
			In:    cmd.InOrStdin(),
			Out:   cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().Bool("plain", false, "Disable the banner and markdown styling")
}
