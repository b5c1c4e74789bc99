package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/replace"
	"github.com/baicai99/ilovelie/internal/report"
)

var (
	replaceAt    []string
	replaceText  string
	replaceType  string
	replaceMatch string
	replaceForce bool
)

var replaceCmd = &cobra.Command{
	Use:   "replace <file>",
	Short: "Replace spans of a file with substitute text",
	Long: `Replace spans of a file with substitute text.

Ranges are given as L:C-L:C (0-based line, UTF-16 column) against the
session baseline. With --match every occurrence of a string is replaced.
Without an active session a session is opened for this one change. That
discards the file's earlier records, so it is refused while the file shows
its lie unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("text") {
			return fmt.Errorf("--text is required")
		}
		if replaceMatch != "" && len(replaceAt) > 0 {
			return fmt.Errorf("--match and --at are mutually exclusive")
		}
		doc, err := openDocument(args[0])
		if err != nil {
			return err
		}

		if replaceMatch != "" {
			var rep replace.ScanReport
			err := inSession(cmd.Context(), doc, replaceForce, nil, func(ctx context.Context) error {
				var err error
				rep, err = eng.replacer.ApplyScanned(ctx, doc, replace.MatchScanner{Needle: replaceMatch},
					replace.Fixed(replaceText), "", history.TypeDictionaryReplace)
				return err
			})
			if err != nil {
				return err
			}
			cmd.Printf("Found %d, replaced %d, skipped %d\n", rep.Found, len(rep.Applied), rep.Skipped)
			printRecords(cmd, rep.Applied)
			return nil
		}

		ranges, err := parseRanges(replaceAt)
		if err != nil {
			return err
		}
		typ := history.TypeManualReplace
		if replaceType != "" {
			if typ, err = history.ParseRecordType(replaceType); err != nil {
				return err
			}
		}
		subs := make([]replace.Substitution, len(ranges))
		for i, r := range ranges {
			subs[i] = replace.Substitution{Range: r, NewText: replaceText, Type: typ}
		}

		var recs []history.Record
		check := func(baseline string) error { return replace.Validate(baseline, subs) }
		err = inSession(cmd.Context(), doc, replaceForce, check, func(ctx context.Context) error {
			var err error
			recs, err = eng.replacer.Apply(ctx, doc, subs)
			return err
		})
		if err != nil {
			return err
		}
		cmd.Printf("Replaced %d span(s)\n", len(recs))
		printRecords(cmd, recs)
		return nil
	},
}

func printRecords(cmd *cobra.Command, recs []history.Record) {
	for _, r := range recs {
		cmd.Println("  " + report.FormatRecord(r))
	}
}

func init() {
	replaceCmd.Flags().StringArrayVar(&replaceAt, "at", nil, "range to replace, L:C-L:C (repeatable)")
	replaceCmd.Flags().StringVar(&replaceText, "text", "", "substitute text")
	replaceCmd.Flags().StringVar(&replaceType, "type", "", "record type (default manual-replace)")
	replaceCmd.Flags().StringVar(&replaceMatch, "match", "", "replace every occurrence of this string")
	replaceCmd.Flags().BoolVar(&replaceForce, "force", false, "open a one-off session even while the file shows its lie")
	rootCmd.AddCommand(replaceCmd)
}
