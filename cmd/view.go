package cmd

import (
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/document"
	"github.com/baicai99/ilovelie/internal/report"
	"github.com/baicai99/ilovelie/internal/toggle"
	"github.com/baicai99/ilovelie/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "Browse the history of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(args[0])
		if err != nil {
			return err
		}
		h := &report.History{
			Status:  eng.toggles.Status(doc.Path()),
			Records: eng.store.RecordsForFile(doc.Path()),
		}

		// The TUI needs a terminal; pipes and tests get the text report.
		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			out, err := (&report.TextRenderer{}).Render(h)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}

		truth, lie, err := renderings(doc, h)
		if err != nil {
			return err
		}
		return tui.Run(h, truth, lie)
	},
}

// renderings returns the truth and lie texts of doc. Without a baseline
// only the side the file currently shows is known.
func renderings(doc document.Document, h *report.History) (truth, lie string, err error) {
	if snapshot, ok := eng.sessions.LatestSnapshot(doc.Path()); ok {
		lie, err = toggle.Render(snapshot, h.Records)
		return snapshot, lie, err
	}
	if h.Status.CurrentState == toggle.Lie {
		return "", doc.Text(), nil
	}
	return doc.Text(), "", nil
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
