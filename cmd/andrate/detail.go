package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var detailCmd = &cobra.Command{
	Use:   "detail <kind> <id>",
	Short: "Show the full record for one item",
	Long: `Show the full record for one item.

Examples:
  andrate detail anime 16498
  andrate detail movie 550`,
	Args: cobra.ExactArgs(2),
	RunE: runDetailCmd,
}

func init() {
	rootCmd.AddCommand(detailCmd)
}

func runDetailCmd(cmd *cobra.Command, args []string) error {
	d, err := newClient().Detail(args[0], args[1])
	if err != nil {
		return fmt.Errorf("detail failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), d)
	}
	printDetail(cmd.OutOrStdout(), d)
	return nil
}
