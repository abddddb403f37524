package domain

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	// ErrEmptyDetentList is returned when a sheet declares no detents.
	ErrEmptyDetentList = errors.New("empty detent list")

	// ErrInvalidDetentOrder is returned when resolved detents decrease.
	ErrInvalidDetentOrder = errors.New("invalid detent order")

	// ErrInvalidDetent is returned when a detent spec cannot be parsed or has an unknown kind.
	ErrInvalidDetent = errors.New("invalid detent")

	// ErrDuplicateName is returned when a sheet name is already mounted.
	ErrDuplicateName = errors.New("duplicate sheet name")
)

// Operation errors.
var (
	// ErrNotFound is returned when a sheet identity cannot be resolved.
	ErrNotFound = errors.New("sheet not found")

	// ErrIndexOutOfRange is returned when a detent index is outside the resolved detents.
	ErrIndexOutOfRange = errors.New("detent index out of range")

	// ErrTornDown is returned to commands pending on a sheet that was unmounted.
	ErrTornDown = errors.New("sheet torn down")

	// ErrAlreadyDismissed marks a dismiss on a dismissed sheet. Dismiss treats it as success.
	ErrAlreadyDismissed = errors.New("sheet already dismissed")

	// ErrInvalidTransition is returned when an operation is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrCyclicPresentation is returned when a sheet would be presented on top of itself.
	ErrCyclicPresentation = errors.New("cyclic presentation")

	// ErrPlatform wraps failures reported by the platform driver.
	ErrPlatform = errors.New("platform failure")

	// ErrLockAcquire is returned when a snapshot lock cannot be taken.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// ConfigurationError reports a rejected detent resolution or sheet configuration.
type ConfigurationError struct {
	Err    error
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// OperationError reports a rejected command.
type OperationError struct {
	Op      string
	SheetID string
	Err     error
}

func (e *OperationError) Error() string {
	if e.SheetID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.SheetID, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// NewOperationError wraps err unless it already is an OperationError.
func NewOperationError(op, sheetID string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Op: op, SheetID: sheetID, Err: err}
}
