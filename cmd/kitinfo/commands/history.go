package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kitinfo/kitinfo/pkg/stores"
)

const timeLayout = "2006-01-02 15:04:05"

func newHistoryCommand(opts *options) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions",
		Long: `List the sessions recorded in the journal, most recent first.

Each session shows when it started, how it ended and how many operations
ran. Use "kitinfo history show <id>" for the operation log of one session;
any unique prefix of the id works.`,
		Example: `  # The last 20 sessions
  kitinfo history

  # The last 5, as JSON
  kitinfo history --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			store, err := openJournalFor(cmd, opts)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tOPERATIONS\tDURATION")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					shortID(s.ID),
					s.StartedAt.Local().Format(timeLayout),
					s.Status,
					s.Operations,
					formatDuration(s.Duration()),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	cmd.AddCommand(newHistoryShowCommand(opts))
	cmd.AddCommand(newHistoryPruneCommand(opts))

	return cmd
}

func newHistoryShowCommand(opts *options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the operation log of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournalFor(cmd, opts)
			if err != nil {
				return err
			}
			defer store.Close()

			session, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, stores.ErrNotFound) {
					return fmt.Errorf("no session %q in the journal", args[0])
				}
				return err
			}

			ops, err := store.ListOperations(cmd.Context(), session.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), struct {
					*stores.Session
					Log []*stores.OperationRecord `json:"log"`
				}{session, ops})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", session.ID)
			fmt.Fprintf(out, "Started:  %s\n", session.StartedAt.Local().Format(timeLayout))
			fmt.Fprintf(out, "Status:   %s\n", session.Status)
			if session.Error != nil {
				fmt.Fprintf(out, "Error:    %s\n", *session.Error)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tOPERATION\tSTATUS\tDURATION\tDETAIL")
			for _, op := range ops {
				detail := op.Message
				if op.Error != nil {
					detail = *op.Error
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", op.Seq, op.Operation, op.Status, formatDuration(op.Duration), detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newHistoryPruneCommand(opts *options) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old sessions from the journal",
		Example: `  # Keep the last week
  kitinfo history prune --older-than 168h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}

			store, err := openJournalFor(cmd, opts)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.DeleteSessionsBefore(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s).\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "remove sessions started before this long ago")

	return cmd
}

// openJournalFor opens the journal configured for cmd.
func openJournalFor(cmd *cobra.Command, opts *options) (*stores.SQLiteStore, error) {
	cfg, err := loadConfig(cmd, opts, false)
	if err != nil {
		return nil, err
	}
	if !cfg.Journal.Enabled {
		return nil, errors.New("the session journal is disabled (journal.enabled is false or --no-journal was given)")
	}
	return openJournal(cmd.Context(), cfg.Journal.Path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	s := d.Round(time.Second).String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	return s
}
