package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxyzli/whisper-flow/internal/daemon"
)

func NewHistoryCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := deps.history().List()
			if err != nil {
				return err
			}
			f := NewFormatter(os.Stdout)
			if len(items) == 0 {
				f.Info("no sessions in " + deps.Config.RecordingsDir())
				return nil
			}
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}
			for _, it := range items {
				f.Row(it.ID, it.Timestamp, preview(it.Text, 60))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to list (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print one session's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := deps.history().Read(args[0])
			if err != nil {
				return err
			}
			NewFormatter(os.Stdout).Text(item.Text)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session directory and its journal rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteSession(cmd.Context(), deps, args[0])
		},
	})

	return cmd
}

// deleteSession goes through the daemon when one is running so that the
// active recording is protected, and falls back to the filesystem.
func deleteSession(ctx context.Context, deps *Dependencies, id string) error {
	f := NewFormatter(os.Stdout)

	_, err := deps.do(daemon.Command{Cmd: daemon.CmdDeleteHistory, ID: id})
	switch {
	case err == nil:
		f.Success("deleted " + id)
		return nil
	case !errors.Is(err, ErrDaemonNotRunning):
		return err
	}

	if err := deps.history().Delete(id); err != nil {
		return err
	}
	if journal := deps.openJournal(); journal != nil {
		defer journal.Close()
		if err := journal.DeleteSession(ctx, id); err != nil {
			deps.Logger.Warnf("journal: %v", err)
		}
	}
	f.Success("deleted " + id)
	return nil
}

func NewRunsCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs from the session journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal := deps.openJournal()
			if journal == nil {
				return fmt.Errorf("journal unavailable at %s", deps.Config.JournalPath())
			}
			defer journal.Close()

			runs, err := journal.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			f := NewFormatter(os.Stdout)
			for _, r := range runs {
				line := fmt.Sprintf("%-4s %-12s %5.1fs %5d chars  %s",
					r.Mode, r.State, r.AudioDuration.Seconds(), r.TextLength, r.Model)
				if r.Failed() {
					line += "  " + r.Error
				}
				f.Row(r.SessionID, r.StartedAt, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")
	return cmd
}
