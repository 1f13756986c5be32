package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uistudio/internal/model"
)

func TestTemplateGeneratorProducesArtifact(t *testing.T) {
	gen := NewTemplateGenerator()

	code, err := gen.Generate(context.Background(), Request{Prompt: "  a pricing card  "})
	require.NoError(t, err)

	assert.Equal(t, model.DefaultComponentName, code.ComponentName)
	assert.Contains(t, code.JSX, "const GeneratedComponent = () =>")
	assert.Contains(t, code.JSX, "a pricing card")
	assert.Contains(t, code.CSS, ".generated-component")
	assert.NotNil(t, code.Dependencies)
	assert.False(t, code.LastUpdated.IsZero())
}

func TestTemplateGeneratorEscapesPrompt(t *testing.T) {
	gen := NewTemplateGenerator()

	code, err := gen.Generate(context.Background(), Request{Prompt: `say "hi" </script>`})
	require.NoError(t, err)

	assert.NotContains(t, code.JSX, `"hi"`)
	assert.NotContains(t, code.JSX, "</script>")
}

func TestTemplateGeneratorRejectsEmptyPrompt(t *testing.T) {
	_, err := NewTemplateGenerator().Generate(context.Background(), Request{Prompt: "   "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestTemplateGeneratorHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTemplateGenerator().Generate(ctx, Request{Prompt: "card"})
	assert.ErrorIs(t, err, context.Canceled)
}
