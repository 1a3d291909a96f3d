package types

import "errors"

// Domain errors for chunk validation
var (
	ErrMissingFilePath   = errors.New("chunk file path is required")
	ErrInvalidStartLine  = errors.New("start line must be >= 1")
	ErrInvalidChunkIndex = errors.New("chunk index must be >= 0")
)
