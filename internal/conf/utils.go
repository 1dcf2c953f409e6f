package conf

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetBasePath expands environment variables in the given path and ensures the
// resulting directory exists. Relative paths are interpreted as relative to
// the working directory.
func GetBasePath(path string) string {
	expandedPath := os.ExpandEnv(path)
	basePath := filepath.Clean(expandedPath)
	if basePath == "." {
		return basePath
	}

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o750); err != nil {
			fmt.Printf("failed to create directory '%s': %v\n", basePath, err)
		}
	}

	return basePath
}
