package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/andrate/internal/events"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Server health and provider breaker states",
	Args:  cobra.NoArgs,
	RunE:  runStatusCmd,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent events",
	Long: `Show recent events, newest last.

Examples:
  andrate events
  andrate events --since 1h
  andrate events --entity library_entry --id 12`,
	Args: cobra.NoArgs,
	RunE: runEventsCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd, eventsCmd)
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsCmd.Flags().String("since", "", "Only events since a time (RFC 3339) or duration (1h)")
	eventsCmd.Flags().String("entity", "", "Only events for this entity type (library_entry, surface)")
	eventsCmd.Flags().Int64("id", 0, "Entity ID, with --entity")
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	st, err := newClient().Status()
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, st)
	}
	fmt.Fprintf(out, "Server:   %s (%s)\n", serverURL, st.Status)
	fmt.Fprintf(out, "Version:  %s\n", st.Version)
	fmt.Fprintf(out, "Uptime:   %s\n", time.Duration(st.UptimeSeconds)*time.Second)
	fmt.Fprintf(out, "Kinds:    %v\n", st.Kinds)
	for _, b := range st.Breakers {
		fmt.Fprintf(out, "Breaker:  %-8s %s\n", b.Name, b.State)
	}
	if len(st.Cache) > 0 {
		var parts []string
		for _, op := range []string{"search", "discover", "detail"} {
			parts = append(parts, fmt.Sprintf("%s %d", op, st.Cache[op]))
		}
		fmt.Fprintf(out, "Cache:    %s\n", strings.Join(parts, ", "))
	}
	if st.EventsDropped > 0 {
		fmt.Fprintf(out, "Dropped:  %d events\n", st.EventsDropped)
	}
	return nil
}

func runEventsCmd(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	var f EventFilter
	f.Since, _ = cmd.Flags().GetString("since")
	f.EntityType, _ = cmd.Flags().GetString("entity")
	f.EntityID, _ = cmd.Flags().GetInt64("id")
	if f.EntityType != "" && f.EntityID <= 0 {
		return errors.New("--entity requires --id")
	}

	resp, err := newClient().Events(limit, f)
	if err != nil {
		return fmt.Errorf("events failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, resp)
	}
	if len(resp.Items) == 0 {
		fmt.Fprintln(out, "No events")
		return nil
	}

	// The server answers newest first; read top to bottom like a log.
	items := slices.Clone(resp.Items)
	slices.Reverse(items)
	reg := events.DefaultRegistry()
	for _, raw := range items {
		fmt.Fprintf(out, "%s  %-20s %s\n", raw.OccurredAt.Local().Format(time.DateTime), raw.EventType, describeEvent(reg, raw))
	}
	return nil
}

// describeEvent summarizes a logged event from its payload. Unknown types
// fall back to the entity reference.
func describeEvent(reg *events.Registry, raw events.RawEvent) string {
	e, err := reg.Decode(raw)
	if err != nil {
		return fmt.Sprintf("%s #%d", raw.EntityType, raw.EntityID)
	}
	if s, ok := e.(events.Summarizer); ok {
		return s.Summary()
	}
	return fmt.Sprintf("%s #%d", e.EntityType(), e.EntityID())
}
