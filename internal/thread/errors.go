package thread

import "errors"

var (
	// ErrUnknownComment is returned when an operation names a comment the
	// synchronizer has not loaded.
	ErrUnknownComment = errors.New("comment not loaded")

	// ErrEmptyContent is a validation failure: content is blank after trimming.
	ErrEmptyContent = errors.New("comment content is empty")

	// ErrEmptyReason is a validation failure: a report needs at least one reason.
	ErrEmptyReason = errors.New("report reason is empty")

	// ErrInvalidInput wraps any other validation failure.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfirmed is returned when a destructive action was declined.
	ErrNotConfirmed = errors.New("action not confirmed")

	// ErrMutationFailed wraps a failed remote mutation. Local state has been
	// reverted or left untouched.
	ErrMutationFailed = errors.New("mutation failed")

	// ErrAlreadyReported is returned for a repeated report of the same target.
	ErrAlreadyReported = errors.New("already reported")
)
