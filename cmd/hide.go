package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/replace"
)

var (
	hideAt    []string
	hideForce bool
)

var hideCmd = &cobra.Command{
	Use:   "hide <file>",
	Short: "Blank out spans of a file, recording them as hidden comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ranges, err := parseRanges(hideAt)
		if err != nil {
			return err
		}
		doc, err := openDocument(args[0])
		if err != nil {
			return err
		}

		var recs []history.Record
		check := func(baseline string) error { return replace.Validate(baseline, replace.HideSubstitutions(ranges)) }
		err = inSession(cmd.Context(), doc, hideForce, check, func(ctx context.Context) error {
			var err error
			recs, err = eng.replacer.Hide(ctx, doc, ranges)
			return err
		})
		if err != nil {
			return err
		}
		cmd.Printf("Hid %d span(s)\n", len(recs))
		printRecords(cmd, recs)
		return nil
	},
}

func init() {
	hideCmd.Flags().StringArrayVar(&hideAt, "at", nil, "range to hide, L:C-L:C (repeatable)")
	hideCmd.Flags().BoolVar(&hideForce, "force", false, "open a one-off session even while the file shows its lie")
	rootCmd.AddCommand(hideCmd)
}
