package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tokenFile persists the bearer token between invocations.
type tokenFile string

func (f tokenFile) Load() (string, error) {
	raw, err := os.ReadFile(string(f))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file failed: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (f tokenFile) Save(token string) error {
	if dir := filepath.Dir(string(f)); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir failed: %w", err)
		}
	}
	if err := os.WriteFile(string(f), []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file failed: %w", err)
	}
	return nil
}
