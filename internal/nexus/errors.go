package nexus

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the orchestrator matches exactly one of
// these via errors.Is, so front-ends can map failures to stable message
// categories without seeing backend-specific text.
var (
	// ErrNotFound: record absent or not owned by the caller. The two cases
	// are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable: a backend is unreachable. Retryable.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrValidation: a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrUploadFailed: the object store rejected the payload.
	ErrUploadFailed = errors.New("upload failed")

	// ErrAnchorPending: the ledger query exhausted its retries without
	// finding the expected record. Distinct from ErrIntegrityMismatch: the
	// anchor may simply not be indexed yet.
	ErrAnchorPending = errors.New("verification data not yet available")

	// ErrIntegrityMismatch: an anchored record was found but its digest
	// differs from the current relational record.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrAlreadyExists: a second builder application for the same owner.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnanchored: the record was written to the relational store but a
	// later step (upload or ledger append) failed, so no anchor exists yet.
	// The record itself is intact; only verification is unavailable.
	ErrUnanchored = errors.New("stored but not anchored")
)

// Error attaches a kind and an optional cause to a human-readable message.
// errors.Is(err, kind) matches the kind; errors.Unwrap yields the cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// wrapErr builds an *Error. Used by the orchestrator and adapters so that
// every failure carries exactly one kind.
func wrapErr(kind error, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// E is the exported form of wrapErr for adapter packages.
func E(kind error, message string, err error) error {
	return wrapErr(kind, message, err)
}
