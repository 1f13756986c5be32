package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List active sessions, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				sessions, err := e.api.ListSessions(e.ctx(cmd))
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tMESSAGES\tUPDATED")
				for _, sess := range sessions {
					fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", sess.ID, sess.Name, len(sess.ChatHistory), sess.UpdatedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := e.api.CreateSession(e.ctx(cmd), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(e.out, "created session %d\n", sess.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a session's chat history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				sess, err := e.api.GetSession(e.ctx(cmd), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(e.out, "%s (id %d, theme %s)\n", sess.Name, sess.ID, sess.UIState.PreviewSettings.Theme)
				for _, msg := range sess.ChatHistory {
					fmt.Fprintf(e.out, "\n[%s] %s\n", msg.Role, msg.Content)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := e.api.DeleteSession(e.ctx(cmd), id); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "deleted session %d\n", id)
				return nil
			},
		},
	)
	return cmd
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid session id %q", raw)
	}
	return uint(id), nil
}
