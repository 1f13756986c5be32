// Package preview turns a generated artifact into a self-contained HTML
// document meant to run inside a sandboxed frame.
//
// Artifact CSS and source are embedded verbatim. Isolation comes from the
// frame sandbox (scripts allowed, no same-origin, no top navigation), never
// from rewriting the artifact.
package preview

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"text/template"

	"uistudio/internal/model"
)

const (
	DefaultReactURL    = "https://unpkg.com/react@18.3.1/umd/react.production.min.js"
	DefaultReactDOMURL = "https://unpkg.com/react-dom@18.3.1/umd/react-dom.production.min.js"

	// SandboxCSP is the Content-Security-Policy value for a document served
	// directly instead of through a frame.
	SandboxCSP = "sandbox allow-scripts"

	// FrameSandbox is the iframe sandbox attribute value.
	FrameSandbox = "allow-scripts"
)

var ErrNoArtifact = errors.New("no component generated")

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

type Options struct {
	ReactURL    string
	ReactDOMURL string
	Title       string
}

type Renderer struct {
	opts Options
	doc  *template.Template
}

func NewRenderer(opts Options) *Renderer {
	if opts.ReactURL == "" {
		opts.ReactURL = DefaultReactURL
	}
	if opts.ReactDOMURL == "" {
		opts.ReactDOMURL = DefaultReactDOMURL
	}
	if opts.Title == "" {
		opts.Title = "Component Preview"
	}
	return &Renderer{
		opts: opts,
		doc:  template.Must(template.New("preview").Parse(documentTemplate)),
	}
}

// Render builds the preview document for code. An empty artifact returns
// ErrNoArtifact; callers show Placeholder instead.
func (r *Renderer) Render(code model.GeneratedCode) (string, error) {
	return r.RenderWithSettings(code, model.DefaultUIState().PreviewSettings)
}

// RenderWithSettings is Render with the session's preview theme applied to
// the page chrome.
func (r *Renderer) RenderWithSettings(code model.GeneratedCode, settings model.PreviewSettings) (string, error) {
	if code.IsEmpty() {
		return "", ErrNoArtifact
	}

	theme := settings.Theme
	if theme != model.ThemeDark {
		theme = model.ThemeLight
	}

	var b strings.Builder
	if err := r.doc.Execute(&b, documentData{
		Title:         html.EscapeString(r.opts.Title),
		ReactURL:      html.EscapeString(r.opts.ReactURL),
		ReactDOMURL:   html.EscapeString(r.opts.ReactDOMURL),
		Theme:         theme,
		Responsive:    settings.Responsive,
		CSS:           code.CSS,
		JSX:           code.JSX,
		ComponentName: MountName(code.ComponentName),
	}); err != nil {
		return "", fmt.Errorf("render preview failed: %w", err)
	}
	return b.String(), nil
}

// MountName returns the identifier the document mounts. Names that are not
// plain identifiers fall back to the default component name.
func MountName(name string) string {
	if identifier.MatchString(name) {
		return name
	}
	return model.DefaultComponentName
}

// Frame wraps doc in an iframe with the sandbox applied.
func Frame(doc string) string {
	return fmt.Sprintf(
		`<iframe title="Component preview" sandbox="%s" referrerpolicy="no-referrer" style="width:100%%;height:100%%;border:0" srcdoc="%s"></iframe>`,
		FrameSandbox,
		html.EscapeString(doc),
	)
}

// Placeholder is shown when the session has no artifact yet.
func Placeholder() string {
	return placeholderDocument
}

type documentData struct {
	Title         string
	ReactURL      string
	ReactDOMURL   string
	Theme         string
	Responsive    bool
	CSS           string
	JSX           string
	ComponentName string
}

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
{{if .Responsive}}<meta name="viewport" content="width=device-width, initial-scale=1.0">
{{end}}<title>{{.Title}}</title>
<style>
body { margin: 0; padding: 20px; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
body.theme-light { background-color: #f9fafb; color: #111827; }
body.theme-dark { background-color: #111827; color: #f9fafb; }
.preview-container { max-width: 800px; margin: 0 auto; border-radius: 8px; box-shadow: 0 1px 3px rgba(0, 0, 0, 0.1); overflow: hidden; }
</style>
<style>
{{.CSS}}
</style>
</head>
<body class="theme-{{.Theme}}">
<div class="preview-container"><div id="root"></div></div>
<script src="{{.ReactURL}}" crossorigin="anonymous"></script>
<script src="{{.ReactDOMURL}}" crossorigin="anonymous"></script>
<script>
{{.JSX}}
</script>
<script>
ReactDOM.createRoot(document.getElementById('root')).render(React.createElement({{.ComponentName}}));
</script>
</body>
</html>
`

const placeholderDocument = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Component Preview</title></head>
<body style="font-family: sans-serif; color: #6b7280; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0;">
<div style="text-align: center;">
<h3>No Component Generated</h3>
<p>Start a conversation to generate your first component</p>
</div>
</body>
</html>
`
