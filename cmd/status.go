package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <file>",
	Short: "Show what a file currently shows and what is recorded for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := trackedPath(args[0])
		if err != nil {
			return err
		}
		st := eng.toggles.Status(path)

		cmd.Printf("File: %s\n", st.Path)
		cmd.Printf("State: %s\n", strings.ToUpper(string(st.CurrentState)))
		if !st.LastToggleTime.IsZero() {
			cmd.Printf("Last toggled: %s\n", st.LastToggleTime.Format(time.RFC3339))
		}
		cmd.Printf("Substitutions: %d (%d hidden comments)\n", st.Substitutions, st.HiddenComments)
		cmd.Printf("Baseline: %t\n", st.HasSnapshot)
		cmd.Printf("Session active: %t\n", st.SessionActive)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
