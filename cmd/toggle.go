package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/toggle"
)

var toggleTo string

var toggleCmd = &cobra.Command{
	Use:   "toggle <file>",
	Short: "Flip a file between its truth and its lie",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(args[0])
		if err != nil {
			return err
		}

		var res toggle.Result
		if toggleTo == "" {
			res, err = eng.toggles.Toggle(cmd.Context(), doc)
		} else {
			target, perr := toggle.ParseState(toggleTo)
			if perr != nil {
				return perr
			}
			res, err = eng.toggles.SwitchTo(cmd.Context(), doc, target)
		}
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("toggle failed: %s", res.ErrorMessage)
		}

		cmd.Printf("Now showing %s (%d span(s), %s)\n", strings.ToUpper(string(res.NewState)), res.AffectedCount, res.Strategy)
		if s := res.Skipped; s.Mismatch > 0 || s.AlreadyTarget > 0 {
			cmd.Printf("Skipped: %d already in place, %d no longer matching\n", s.AlreadyTarget, s.Mismatch)
		}
		return nil
	},
}

func init() {
	toggleCmd.Flags().StringVar(&toggleTo, "to", "", "switch to this state (truth or lie) instead of flipping")
	rootCmd.AddCommand(toggleCmd)
}
