package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrConflict           = errors.New("conflict")
	ErrInvalidTransition  = errors.New("invalid stage transition")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

var errorCodes = []struct {
	kind error
	code string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrIntegrityViolation, "integrity_violation"},
	{ErrUnauthorized, "unauthorized"},
	{ErrNotFound, "not_found"},
	{ErrConflict, "conflict"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrTemporary, "temporary"},
}

// ErrorCode is the stable machine-readable name of an error kind, used in
// API error bodies and metric labels. Unclassified errors are "internal"
// and nil is "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return "internal"
}
