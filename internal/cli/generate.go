package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"uistudio/internal/model"
	"uistudio/internal/preview"
	"uistudio/internal/studio"
)

const previewFileName = "preview.html"

type generateOptions struct {
	sessionID uint
	outDir    string
	zip       bool
	theme     string
	elementID string
}

func newGenerateCommand(e *env) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Run one generation turn and write the preview and export",
		Long: `Runs one generation turn against the newest session (or --session),
then writes preview.html and the export bundle into --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runGenerate(cmd, args[0], opts)
		},
	}
	cmd.Flags().UintVarP(&opts.sessionID, "session", "s", 0, "session id (default newest)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "output directory")
	cmd.Flags().BoolVar(&opts.zip, "zip", false, "export as a zip archive instead of text")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "preview theme: light or dark")
	cmd.Flags().StringVar(&opts.elementID, "element", "", "element the prompt refers to")
	return cmd
}

func (e *env) runGenerate(cmd *cobra.Command, prompt string, opts *generateOptions) error {
	ctx := e.ctx(cmd)
	sync, orch, err := e.studio()
	if err != nil {
		return err
	}
	defer func() {
		if err := sync.Close(ctx); err != nil {
			e.log.Warn("final save failed", zap.Error(err))
		}
	}()

	if opts.sessionID != 0 {
		_, err = sync.SelectSession(ctx, opts.sessionID)
	} else {
		_, err = orch.Start(ctx)
	}
	if err != nil {
		return err
	}

	if opts.theme != "" {
		if opts.theme != model.ThemeLight && opts.theme != model.ThemeDark {
			return fmt.Errorf("unknown theme %q", opts.theme)
		}
		cur := sync.Current().UIState.PreviewSettings
		cur.Theme = opts.theme
		if err := sync.PatchUIState(model.UIStatePatch{PreviewSettings: &cur}); err != nil {
			return err
		}
	}

	var meta *model.ChatMetadata
	if opts.elementID != "" {
		meta = &model.ChatMetadata{ElementID: opts.elementID}
	}
	genErr := orch.Submit(ctx, prompt, meta)

	if err := sync.Flush(ctx); err != nil && !errors.Is(err, studio.ErrNoSession) {
		e.log.Warn("save session failed", zap.Error(err))
	}
	if genErr != nil {
		return genErr
	}

	sess := sync.Current()
	written, err := writeArtifacts(e.renderer(), *sess, opts.outDir, opts.zip)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "session %d: %s\n", sess.ID, sess.Name)
	for _, path := range written {
		fmt.Fprintf(e.out, "wrote %s\n", path)
	}
	return nil
}

func (e *env) renderer() *preview.Renderer {
	return preview.NewRenderer(preview.Options{
		ReactURL:    e.cfg.Preview.ReactURL,
		ReactDOMURL: e.cfg.Preview.ReactDOMURL,
	})
}

// writeArtifacts writes the preview document and the export for sess into
// dir and returns the written paths.
func writeArtifacts(r *preview.Renderer, sess model.Session, dir string, asZip bool) ([]string, error) {
	doc, err := r.RenderWithSettings(sess.GeneratedCode, sess.UIState.PreviewSettings)
	if err != nil {
		return nil, err
	}
	name, body, err := exportPayload(sess.GeneratedCode, asZip)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir failed: %w", err)
	}

	previewPath := filepath.Join(dir, previewFileName)
	if err := os.WriteFile(previewPath, []byte(doc), 0o644); err != nil {
		return nil, fmt.Errorf("write preview failed: %w", err)
	}
	exportPath := filepath.Join(dir, name)
	if err := os.WriteFile(exportPath, body, 0o644); err != nil {
		return nil, fmt.Errorf("write export failed: %w", err)
	}
	return []string{previewPath, exportPath}, nil
}

func exportPayload(code model.GeneratedCode, asZip bool) (string, []byte, error) {
	if asZip {
		body, err := preview.Archive(code)
		return preview.ArchiveFileName, body, err
	}
	body, err := preview.Bundle(code)
	return preview.BundleFileName, body, err
}
