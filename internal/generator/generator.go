// Package generator produces component artifacts from a natural-language
// prompt. The shipped implementation is a deterministic template; model-backed
// generators plug in behind the same interface.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"uistudio/internal/model"
)

var ErrEmptyPrompt = errors.New("prompt is empty")

type Request struct {
	Prompt        string
	ComponentName string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (model.GeneratedCode, error)
}

type TemplateGenerator struct {
	jsx *template.Template
	css string
}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{
		jsx: template.Must(template.New("component").Parse(componentTemplate)),
		css: baseStyles,
	}
}

func (g *TemplateGenerator) Generate(ctx context.Context, req Request) (model.GeneratedCode, error) {
	if err := ctx.Err(); err != nil {
		return model.GeneratedCode{}, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return model.GeneratedCode{}, ErrEmptyPrompt
	}
	name := req.ComponentName
	if name == "" {
		name = model.DefaultComponentName
	}

	var jsx strings.Builder
	if err := g.jsx.Execute(&jsx, map[string]string{
		"Name":   name,
		"Prompt": template.JSEscapeString(prompt),
	}); err != nil {
		return model.GeneratedCode{}, fmt.Errorf("render component template failed: %w", err)
	}

	return model.GeneratedCode{
		JSX:           jsx.String(),
		CSS:           g.css,
		ComponentName: name,
		Dependencies:  []string{},
		LastUpdated:   time.Now(),
	}, nil
}

const componentTemplate = `// Plain script component, React is provided globally by the preview runtime.
const {{.Name}} = () => {
  const [clicks, setClicks] = React.useState(0);

  return React.createElement('div', { className: 'generated-component' },
    React.createElement('h2', { className: 'generated-title' }, 'Generated Component'),
    React.createElement('p', { className: 'generated-description' },
      'This is a component generated based on your prompt: "{{.Prompt}}"'),
    React.createElement('button', {
      className: 'generated-button',
      onClick: () => setClicks(clicks + 1),
    }, clicks === 0 ? 'Click me' : 'Clicked ' + clicks + ' times')
  );
};`

const baseStyles = `.generated-component {
  padding: 2rem;
  border: 1px solid #e5e7eb;
  border-radius: 0.5rem;
  background-color: white;
  box-shadow: 0 1px 3px 0 rgba(0, 0, 0, 0.1);
  margin: 1rem;
}

.generated-title {
  color: #374151;
  margin-bottom: 1rem;
  font-size: 1.5rem;
  font-weight: 600;
}

.generated-description {
  color: #6b7280;
  margin-bottom: 1.5rem;
  line-height: 1.6;
}

.generated-button {
  background-color: #3b82f6;
  color: white;
  padding: 0.5rem 1rem;
  border: none;
  border-radius: 0.375rem;
  cursor: pointer;
  font-weight: 500;
  transition: background-color 0.2s;
}

.generated-button:hover {
  background-color: #2563eb;
}`
