package cmd

import (
	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/report"
)

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history <file>",
	Short: "List every record kept for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := trackedPath(args[0])
		if err != nil {
			return err
		}

		format := historyFormat
		if format == "" {
			format = cfg.HistoryFormat
		}
		renderer, err := report.ForFormat(format)
		if err != nil {
			return err
		}

		out, err := renderer.Render(&report.History{
			Status:  eng.toggles.Status(path),
			Records: eng.store.RecordsForFile(path),
		})
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyFormat, "format", "", "output format: text, json or yaml")
	rootCmd.AddCommand(historyCmd)
}
