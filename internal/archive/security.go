package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateExtractPath joins an archive entry name onto destPath and rejects
// names that would land outside it.
func ValidateExtractPath(destPath, entryName string) (string, error) {
	if entryName == "" {
		return "", fmt.Errorf("empty entry name")
	}
	if filepath.IsAbs(entryName) || strings.HasPrefix(entryName, "/") || strings.HasPrefix(entryName, `\`) {
		return "", fmt.Errorf("absolute entry path: %s", entryName)
	}

	cleanDest := filepath.Clean(destPath)
	target := filepath.Join(cleanDest, filepath.FromSlash(entryName))

	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("path outside destination directory: %s", entryName)
	}

	return target, nil
}
