package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/toggle"
)

var diagnoseJSON bool

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <file>",
	Short: "Check whether the records of a file still line up with its contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(args[0])
		if err != nil {
			return err
		}
		d, err := eng.toggles.Diagnose(doc)
		if err != nil {
			return err
		}

		if diagnoseJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		}
		printDiagnosis(cmd, d)
		return nil
	},
}

func printDiagnosis(cmd *cobra.Command, d toggle.Diagnosis) {
	cmd.Printf("%s: %s, %d restorable, %d out of bounds, %d mismatched\n",
		d.Path, strings.ToUpper(string(d.State)), d.Restorable, d.OutOfBounds, d.Mismatch)
	if d.Drifted {
		cmd.Println("  file no longer matches its baseline or its lie")
	}
	for _, e := range d.Entries {
		if e.Finding == toggle.FindingRestorable {
			continue
		}
		cmd.Printf("  %s %s: expected %q, found %q\n", e.Range, e.Finding, e.Expected, e.Live)
	}
}

func init() {
	diagnoseCmd.Flags().BoolVar(&diagnoseJSON, "json", false, "print the diagnosis as JSON")
	rootCmd.AddCommand(diagnoseCmd)
}
