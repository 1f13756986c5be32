package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"uistudio/internal/preview"
)

func newPreviewCommand(e *env) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Render a session's component as a standalone HTML page",
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
			doc, err := e.renderer().RenderWithSettings(sess.GeneratedCode, sess.UIState.PreviewSettings)
			if errors.Is(err, preview.ErrNoArtifact) {
				doc = preview.Placeholder()
			} else if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = fmt.Fprint(e.out, doc)
				return err
			}
			if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("write preview failed: %w", err)
			}
			fmt.Fprintf(e.out, "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newExportCommand(e *env) *cobra.Command {
	var (
		out   string
		asZip bool
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a session's component as text or a zip archive",
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
			name, body, err := exportPayload(sess.GeneratedCode, asZip)
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return fmt.Errorf("write export failed: %w", err)
			}
			fmt.Fprintf(e.out, "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default generated-component.txt or .zip)")
	cmd.Flags().BoolVar(&asZip, "zip", false, "export as a zip archive")
	return cmd
}
