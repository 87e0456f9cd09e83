package email

import (
	"errors"
	"fmt"
)

var (
	ErrAuthUnavailable         = errors.New("auth unavailable")
	ErrFetchFailed             = errors.New("fetch failed")
	ErrPaginationLimitExceeded = errors.New("pagination limit exceeded")
	ErrPersistFailure          = errors.New("persist failure")
	// ErrBusy means another writer holds the state; retry later.
	ErrBusy = errors.New("busy")
	// ErrMailboxUnavailable means a request was refused before it was sent,
	// e.g. by an open circuit breaker.
	ErrMailboxUnavailable = errors.New("mailbox unavailable")
)

// FetchError reports a listing failure for one label. It matches
// ErrFetchFailed as well as the underlying cause.
type FetchError struct {
	Label string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Label, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// SyncError is the single terminal failure of a sync run.
type SyncError struct {
	Stage string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed (%s): %v", e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrMailboxUnavailable)
}
