package sync

import (
	"context"

	"mailfootprint/internal/domain/email"
)

type CredentialProvider interface {
	Acquire(ctx context.Context, interactive bool) (email.Credential, error)
}

type Mailbox interface {
	ListPage(ctx context.Context, cred email.Credential, label, pageToken string, pageSize int) (email.Page, error)
	GetMetadata(ctx context.Context, cred email.Credential, id string, headers []string) (email.MessageDetail, error)
}

// StateStore persists sync results. Commit must write records and stats in
// one transaction and fail with email.ErrBusy when the reset marker no
// longer equals expectedLastReset.
type StateStore interface {
	LastReset(ctx context.Context) (string, error)
	Commit(ctx context.Context, result email.SyncResult, expectedLastReset string) error
}

type CommitGuard interface {
	Acquire(ctx context.Context) (func(), error)
}
