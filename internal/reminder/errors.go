package reminder

import (
	"errors"
	"fmt"
)

// ErrRecipientMissing is recorded when a profile has no delivery token.
var ErrRecipientMissing = errors.New("no delivery token")

var errEmptyToken = errors.New("token source returned an empty token")

// FetchError reports an unreachable or malformed event/recipient store.
// It aborts the whole run.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CredentialError reports a failed access token exchange. No event can be
// sent without a token, so it aborts the whole run.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("obtain access token: %v", e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

func asFetchError(op string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Op: op, Err: err}
}

func asCredentialError(err error) error {
	var ce *CredentialError
	if errors.As(err, &ce) {
		return err
	}
	return &CredentialError{Err: err}
}
