package domain

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when phase one succeeded but no record id could be extracted.
var ErrRecordNotFound = errors.New("ledger record not found in command output")

// ErrAttestationNotFound is returned by the journal when a message has no entry.
var ErrAttestationNotFound = errors.New("attestation not found")

// AuthError is a failed login against the verification authority.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authority authentication failed: %v", e.Err)
	}
	return fmt.Sprintf("authority authentication failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AuthorityUnavailableError is a transport failure or a non 2xx answer from the verification endpoint.
type AuthorityUnavailableError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthorityUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authority unavailable: %v", e.Err)
	}
	return fmt.Sprintf("authority returned status %d: %s", e.StatusCode, e.Body)
}

func (e *AuthorityUnavailableError) Unwrap() error { return e.Err }

// AuthorityResponseMalformedError is an authority answer that does not match the verdict schema.
type AuthorityResponseMalformedError struct {
	Body string
	Err  error
}

func (e *AuthorityResponseMalformedError) Error() string {
	return fmt.Sprintf("malformed authority response: %v", e.Err)
}

func (e *AuthorityResponseMalformedError) Unwrap() error { return e.Err }

// LedgerCommandFailedError is a ledger command that did not complete successfully.
type LedgerCommandFailedError struct {
	Function string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *LedgerCommandFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger command %s failed: %v", e.Function, e.Err)
	}
	return fmt.Sprintf("ledger command %s exited with %d: %s", e.Function, e.ExitCode, e.Stderr)
}

func (e *LedgerCommandFailedError) Unwrap() error { return e.Err }

// PoisonMessageError is a queue message that can never be processed as is.
type PoisonMessageError struct {
	Reason string
	Err    error
}

func (e *PoisonMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("poison message: %s: %v", e.Reason, e.Err)
	}
	return "poison message: " + e.Reason
}

func (e *PoisonMessageError) Unwrap() error { return e.Err }

// IsPoison tells whether err marks a permanently unprocessable message.
func IsPoison(err error) bool {
	var p *PoisonMessageError
	return errors.As(err, &p)
}
