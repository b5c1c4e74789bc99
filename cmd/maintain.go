package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/toggle"
)

var (
	cleanupMaxAge time.Duration
	clearAll      bool
)

var removeCmd = &cobra.Command{
	Use:   "remove <record-id>",
	Short: "Delete one record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, ok := eng.store.RecordByID(args[0])
		if !ok {
			return fmt.Errorf("no record with id %s", args[0])
		}
		if err := withdraw(cmd.Context(), rec.FilePath, []history.Record{rec}); err != nil {
			return err
		}
		if _, err := eng.store.RemoveRecordByID(cmd.Context(), rec.ID); err != nil {
			return err
		}
		if _, err := eng.toggles.Refresh(cmd.Context(), rec.FilePath); err != nil {
			return err
		}
		cmd.Printf("Removed record %s\n", rec.ID)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear [file]",
	Short: "Delete every record of a file and forget its state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if clearAll == (len(args) == 1) {
			return fmt.Errorf("give either a file or --all")
		}

		var paths []string
		if clearAll {
			seen := map[string]bool{}
			for _, r := range eng.store.AllRecords() {
				if !seen[r.FilePath] {
					seen[r.FilePath] = true
					paths = append(paths, r.FilePath)
				}
			}
			// States can outlive their records.
			for _, p := range eng.toggles.Paths() {
				if !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
			}
		} else {
			path, err := trackedPath(args[0])
			if err != nil {
				return err
			}
			paths = []string{path}
		}
		for _, p := range paths {
			if err := withdraw(cmd.Context(), p, eng.store.RecordsForFile(p)); err != nil {
				return err
			}
		}

		var (
			n   int
			err error
		)
		if clearAll {
			n, err = eng.store.ClearAll(cmd.Context())
		} else {
			n, err = eng.store.ClearRecordsForFile(cmd.Context(), paths[0])
		}
		if err != nil {
			return err
		}
		for _, p := range paths {
			if err := eng.toggles.Forget(cmd.Context(), p); err != nil {
				return err
			}
		}
		cmd.Printf("Cleared %d record(s)\n", n)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete inactive records older than a maximum age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge := cleanupMaxAge
		if !cmd.Flags().Changed("max-age") {
			d, err := cfg.MaxAge()
			if err != nil {
				return err
			}
			maxAge = d
		}
		if maxAge < 0 {
			return fmt.Errorf("--max-age must not be negative")
		}

		before := map[string]bool{}
		for _, r := range eng.store.AllRecords() {
			before[r.FilePath] = true
		}
		old := map[string][]history.Record{}
		for _, r := range eng.store.OldRecords(maxAge) {
			old[r.FilePath] = append(old[r.FilePath], r)
		}
		for path, recs := range old {
			if err := withdraw(cmd.Context(), path, recs); err != nil {
				return err
			}
		}
		n, err := eng.store.CleanupOldRecords(cmd.Context(), maxAge)
		if err != nil {
			return err
		}
		for path := range before {
			if _, err := eng.toggles.Refresh(cmd.Context(), path); err != nil {
				return err
			}
		}
		cmd.Printf("Removed %d record(s) older than %s\n", n, maxAge)
		return nil
	},
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe <file>",
	Short: "Keep only the newest version of each recorded range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := trackedPath(args[0])
		if err != nil {
			return err
		}
		n, err := eng.store.DedupeRecordsForFile(cmd.Context(), path)
		if err != nil {
			return err
		}
		cmd.Printf("Removed %d superseded record(s)\n", n)
		return nil
	},
}

// withdraw takes removed out of path's rendering while it shows LIE, so the
// file never keeps a lie its records no longer describe. Call it before the
// records are deleted.
func withdraw(ctx context.Context, path string, removed []history.Record) error {
	if len(removed) == 0 || eng.toggles.Info(path).CurrentState != toggle.Lie {
		return nil
	}
	doc, err := openDocument(path)
	if err != nil {
		eng.log.Warn().Err(err).Str("file", path).Msg("cannot withdraw records from the document")
		return nil
	}
	return eng.toggles.Withdraw(ctx, doc, removed)
}

func init() {
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "clear every tracked file")
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "max-age", 0, "age after which inactive records are deleted (default from config)")
	rootCmd.AddCommand(removeCmd, clearCmd, cleanupCmd, dedupeCmd)
}
