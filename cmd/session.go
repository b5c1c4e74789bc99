package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var forceStart bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage editing sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <file>",
	Short: "Snapshot a file and start a session on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(args[0])
		if err != nil {
			return err
		}
		if id, ok := eng.sessions.CurrentSessionID(doc.Path()); ok && !forceStart {
			return fmt.Errorf("session already in progress for %s (%s); use --force to discard it", doc.Path(), id)
		}
		id, err := eng.sessions.StartSession(cmd.Context(), doc.Path(), doc.Text())
		if err != nil {
			return err
		}
		if _, err := eng.toggles.Refresh(cmd.Context(), doc.Path()); err != nil {
			return err
		}
		cmd.Printf("Session started: %s\n", id)
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <file>",
	Short: "End the session on a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := trackedPath(args[0])
		if err != nil {
			return err
		}
		id, ok := eng.sessions.CurrentSessionID(path)
		if !ok {
			return fmt.Errorf("no active session for %s", path)
		}
		if err := eng.sessions.EndSession(cmd.Context(), path); err != nil {
			return err
		}
		cmd.Printf("Session ended: %s\n", id)
		return nil
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status [file]",
	Short: "Show the active session of a file, or every active session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			active := eng.store.ActiveSessions()
			if len(active) == 0 {
				cmd.Println("no active sessions")
				return nil
			}
			paths := make([]string, 0, len(active))
			for p := range active {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				cmd.Printf("%s  %s\n", active[p], p)
			}
			return nil
		}

		path, err := trackedPath(args[0])
		if err != nil {
			return err
		}
		id, ok := eng.sessions.CurrentSessionID(path)
		if !ok {
			cmd.Println("no active session")
			return nil
		}
		st := eng.toggles.Status(path)
		cmd.Printf("Session: %s\n", id)
		cmd.Printf("State: %s\n", st.CurrentState)
		cmd.Printf("Substitutions: %d\n", st.Substitutions)
		return nil
	},
}

func init() {
	sessionStartCmd.Flags().BoolVar(&forceStart, "force", false, "discard an existing session and its records")
	sessionCmd.AddCommand(sessionStartCmd, sessionEndCmd, sessionStatusCmd)
	rootCmd.AddCommand(sessionCmd)
}
