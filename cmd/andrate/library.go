package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmunix/andrate/internal/library"
	"github.com/vmunix/andrate/internal/rating"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Manage your library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library entries",
	Long: `List library entries with optional filters.

Examples:
  andrate library list
  andrate library list --status watching
  andrate library list --type anime --sort rating
  andrate library list --q bebop`,
	Args: cobra.NoArgs,
	RunE: runLibraryListCmd,
}

var librarySaveCmd = &cobra.Command{
	Use:   "save <kind> <id>",
	Short: "Set the status and rating of an item",
	Long: `Set the status and rating of an item, adding it if needed.

The title is fetched from the provider unless --title is given.

Examples:
  andrate library save anime 1 --status watching
  andrate library save movie 550 --status completed --rating 9.5`,
	Args: cobra.ExactArgs(2),
	RunE: runLibrarySaveCmd,
}

var rateCmd = &cobra.Command{
	Use:   "rate <kind> <id> [rating]",
	Short: "Rate an item",
	Long: `Rate an item in half steps from 0.5 to 10.

Give the rating directly, or pick it like a star widget: --star selects
the star (1-10) and --pos the position across it (0-1, left half is the
half star). Rating an item with its current rating clears the rating.

Examples:
  andrate rate anime 1 8.5
  andrate rate movie 550 --star 9 --pos 0.3
  andrate rate tv 1399 10 --status watching`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runRateCmd,
}

func init() {
	rootCmd.AddCommand(libraryCmd, rateCmd)
	libraryCmd.AddCommand(libraryListCmd, librarySaveCmd)

	libraryListCmd.Flags().StringP("type", "t", "", "Filter by item type (anime, tv, movie)")
	libraryListCmd.Flags().StringP("status", "s", "", "Filter by status (planning, watching, completed, abandoned)")
	libraryListCmd.Flags().String("q", "", "Filter by title substring")
	libraryListCmd.Flags().String("sort", "", "Sort: added, title, rating")

	librarySaveCmd.Flags().StringP("status", "s", "", "Status (planning, watching, completed, abandoned)")
	librarySaveCmd.Flags().StringP("rating", "r", "", "Rating, or 'none' to clear")
	_ = librarySaveCmd.MarkFlagRequired("status")

	rateCmd.Flags().Int("star", 0, "Star number (1-10)")
	rateCmd.Flags().Float64("pos", 1, "Position across the star (0-1)")
	rateCmd.Flags().StringP("status", "s", "", "Status when the item is new (default completed)")

	for _, c := range []*cobra.Command{librarySaveCmd, rateCmd} {
		c.Flags().String("title", "", "Item title (skips the provider lookup)")
	}
}

func runLibraryListCmd(cmd *cobra.Command, args []string) error {
	itemType, _ := cmd.Flags().GetString("type")
	status, _ := cmd.Flags().GetString("status")
	q, _ := cmd.Flags().GetString("q")
	sort, _ := cmd.Flags().GetString("sort")

	resp, err := newClient().Library(itemType, status, q, sort)
	if err != nil {
		return fmt.Errorf("library failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	printLibrary(cmd.OutOrStdout(), resp)
	return nil
}

// itemRef builds the item reference for a library write. Without --title the
// detail endpoint supplies title and poster.
func itemRef(cmd *cobra.Command, client *Client, kind, id string) (ItemRef, error) {
	ref := ItemRef{ItemID: id, ItemType: kind}
	ref.Title, _ = cmd.Flags().GetString("title")
	if ref.Title != "" {
		return ref, nil
	}
	d, err := client.Detail(kind, id)
	if err != nil {
		return ref, fmt.Errorf("lookup %s %s: %w", kind, id, err)
	}
	ref.Title, ref.PosterURL = d.Title, d.PosterURL
	return ref, nil
}

func runLibrarySaveCmd(cmd *cobra.Command, args []string) error {
	rawStatus, _ := cmd.Flags().GetString("status")
	status, err := library.ParseStatus(rawStatus)
	if err != nil {
		return err
	}
	rawRating, _ := cmd.Flags().GetString("rating")
	r, err := rating.Parse(rawRating)
	if err != nil {
		return err
	}

	client := newClient()
	if err := client.requireUser(); err != nil {
		return err
	}
	ref, err := itemRef(cmd, client, args[0], args[1])
	if err != nil {
		return err
	}

	entry, err := client.Save(SaveRequest{Item: ref, Status: string(status), Rating: r.Ptr()})
	if err != nil {
		return fmt.Errorf("save failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), entry)
	}
	printEntry(cmd.OutOrStdout(), entry)
	return nil
}

// selectedRating resolves the rating argument or the --star/--pos pair.
func selectedRating(cmd *cobra.Command, args []string) (rating.Rating, error) {
	star, _ := cmd.Flags().GetInt("star")
	switch {
	case len(args) == 3 && star != 0:
		return rating.None, errors.New("give a rating or --star, not both")
	case len(args) == 3:
		r, err := rating.Parse(args[2])
		if err == nil && !r.IsSet() {
			err = fmt.Errorf("%w: rating is required", rating.ErrInvalid)
		}
		return r, err
	case star < 1 || star > rating.Stars:
		return rating.None, fmt.Errorf("%w: --star must be 1-%d", rating.ErrInvalid, rating.Stars)
	}
	pos, _ := cmd.Flags().GetFloat64("pos")
	return rating.Quantize(pos, star-1), nil
}

func runRateCmd(cmd *cobra.Command, args []string) error {
	r, err := selectedRating(cmd, args)
	if err != nil {
		return err
	}
	status, _ := cmd.Flags().GetString("status")
	if status != "" {
		st, err := library.ParseStatus(status)
		if err != nil {
			return err
		}
		status = string(st)
	}

	client := newClient()
	if err := client.requireUser(); err != nil {
		return err
	}
	ref, err := itemRef(cmd, client, args[0], args[1])
	if err != nil {
		return err
	}

	entry, err := client.Rate(RateRequest{Item: ref, Rating: r.OrZero(), Status: status})
	if err != nil {
		return fmt.Errorf("rate failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), entry)
	}
	printEntry(cmd.OutOrStdout(), entry)
	return nil
}
