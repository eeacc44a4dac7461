package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	dotenvFilename = ".env"
	// envFileVar points at an explicit settings file and disables the search.
	envFileVar = "ENV_FILE"
)

// findDotEnv returns ENV_FILE when set, otherwise the nearest filename in the
// working directory or its parents. The search stops at the first directory
// holding go.mod so `go run ./cmd/...` and package tests share the
// repository's file without picking up one from outside it.
func findDotEnv(filename string) (string, error) {
	if explicit := strings.TrimSpace(os.Getenv(envFileVar)); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if isFile(filepath.Join(dir, filename)) {
			return filepath.Join(dir, filename), nil
		}
		if isFile(filepath.Join(dir, "go.mod")) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
