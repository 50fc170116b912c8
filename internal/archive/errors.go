package archive

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCodec             = errors.New("codec failure")
	ErrEmptyOrProtected  = errors.New("archive is empty or password-protected")
	ErrFilesystem        = errors.New("filesystem error")
	ErrInvalidRequest    = errors.New("invalid request")
)

func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrEmptyOrProtected):
		return "empty_or_protected"
	case errors.Is(err, ErrCodec):
		return "codec_failure"
	case errors.Is(err, ErrFilesystem):
		return "filesystem"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}

func Failure(err error) OperationResult {
	return OperationResult{
		Success:   false,
		Message:   err.Error(),
		ErrorKind: ErrorKind(err),
	}
}

func codecError(err error) error {
	return fmt.Errorf("%w: %v", ErrCodec, err)
}

func filesystemError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFilesystem, op, err)
}
