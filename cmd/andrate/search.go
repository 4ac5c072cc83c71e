package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [flags] <query>...",
	Short: "Search anime, TV and movies",
	Long: `Search every provider at once, or one kind with --kind.

Providers that fail are listed under the results; the rest still show.

Examples:
  andrate search "attack on titan"
  andrate search --kind movie --sort rating fight club
  andrate search --min-rating 8 cowboy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearchCmd,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Browse trending anime and popular TV and movies",
	Long: `Browse what's trending (anime) and popular (TV, movies).

Examples:
  andrate discover
  andrate discover --kind anime --page 2
  andrate discover --kind movie --sort title`,
	Args: cobra.NoArgs,
	RunE: runDiscoverCmd,
}

func init() {
	rootCmd.AddCommand(searchCmd, discoverCmd)
	for _, c := range []*cobra.Command{searchCmd, discoverCmd} {
		c.Flags().StringP("kind", "k", "", "Item type: anime, tv, movie (default all)")
		c.Flags().Float64("min-rating", 0, "Hide items rated below this (0-10)")
		c.Flags().String("sort", "", "Sort: popularity, rating, title")
	}
	discoverCmd.Flags().IntP("page", "p", 1, "Page number")
}

func viewOptions(cmd *cobra.Command) ViewOptions {
	minRating, _ := cmd.Flags().GetFloat64("min-rating")
	sort, _ := cmd.Flags().GetString("sort")
	return ViewOptions{MinRating: minRating, Sort: sort}
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	kind, _ := cmd.Flags().GetString("kind")

	results, err := newClient().Search(query, kind, viewOptions(cmd))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), results)
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}

func runDiscoverCmd(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	page, _ := cmd.Flags().GetInt("page")

	results, err := newClient().Discover(kind, page, viewOptions(cmd))
	if err != nil {
		return fmt.Errorf("discover failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), results)
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}
