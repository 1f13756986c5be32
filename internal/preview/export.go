package preview

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"

	"uistudio/internal/model"
)

const (
	BundleFileName  = "generated-component.txt"
	ArchiveFileName = "generated-component.zip"
)

// Bundle is the flat text export: the source, a blank line, the styles.
func Bundle(code model.GeneratedCode) ([]byte, error) {
	if code.IsEmpty() {
		return nil, ErrNoArtifact
	}
	return []byte("JSX:\n" + code.JSX + "\n\nCSS:\n" + code.CSS), nil
}

// Archive packs the artifact as component.jsx, component.css and a README.
func Archive(code model.GeneratedCode) ([]byte, error) {
	if code.IsEmpty() {
		return nil, ErrNoArtifact
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	modified := code.LastUpdated
	if modified.IsZero() {
		modified = time.Now()
	}
	files := []struct {
		name string
		body string
	}{
		{"component.jsx", code.JSX},
		{"component.css", code.CSS},
		{"README.md", readme(code)},
	}
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s in archive failed: %w", f.name, err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			return nil, fmt.Errorf("write %s in archive failed: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive failed: %w", err)
	}
	return buf.Bytes(), nil
}

func readme(code model.GeneratedCode) string {
	deps := "none"
	if len(code.Dependencies) > 0 {
		deps = strings.Join(code.Dependencies, ", ")
	}
	return fmt.Sprintf("# %s\n\nGenerated component.\n\n- Source: component.jsx\n- Styles: component.css\n- Dependencies: %s\n- Last updated: %s\n",
		MountName(code.ComponentName),
		deps,
		code.LastUpdated.UTC().Format(time.RFC3339),
	)
}
