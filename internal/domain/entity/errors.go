package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential covers a missing key and a key that failed the probe.
	// Callers cannot tell the two apart.
	ErrInvalidCredential = errors.New("invalid API key")
	ErrEmptyInput        = errors.New("user input is required")
)

// ProviderError reports a completion or tool failure on one response path.
type ProviderError struct {
	Path ResponsePath
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s path: %v", e.Path, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(path ResponsePath, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Path: path, Err: err}
}

// IsRejection reports whether err is a validation failure raised before any model call.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrEmptyInput)
}
