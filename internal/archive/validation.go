package archive

import (
	"fmt"
	"slices"
	"strings"
)

var validKinds = []Kind{KindCompress, KindExtract}

func ValidateRequest(req OperationRequest) error {
	if !slices.Contains(validKinds, req.Kind) {
		return fmt.Errorf("%w: unknown operation kind %q", ErrInvalidRequest, req.Kind)
	}
	if strings.TrimSpace(req.SourcePath) == "" {
		return fmt.Errorf("%w: source path is required", ErrInvalidRequest)
	}
	if strings.ContainsRune(req.SourcePath, 0) {
		return fmt.Errorf("%w: source path contains a NUL byte", ErrInvalidRequest)
	}
	return nil
}

func ParseKind(s string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(validKinds, kind) {
		return "", fmt.Errorf("%w: unknown operation kind %q", ErrInvalidRequest, s)
	}
	return kind, nil
}
