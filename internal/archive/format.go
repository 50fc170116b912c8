package archive

import (
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatZip         Format = "zip"
	FormatRar         Format = "rar"
	FormatUnsupported Format = "unsupported"
)

// DetectFormat classifies a path by its extension only; file contents are
// never inspected.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return FormatZip
	case ".rar":
		return FormatRar
	default:
		return FormatUnsupported
	}
}

func IsArchive(path string) bool {
	return DetectFormat(path) != FormatUnsupported
}
