package state

import (
	"context"
	"time"

	"mailfootprint/internal/domain/email"
)

type Resetter interface {
	Reset(ctx context.Context, at time.Time) error
}

type CountersWriter interface {
	SetCounters(ctx context.Context, c email.Counters) error
}

type CredentialProvider interface {
	Acquire(ctx context.Context, interactive bool) (email.Credential, error)
}

// LabelCounter reports the provider's message total for a label.
type LabelCounter interface {
	LabelTotal(ctx context.Context, cred email.Credential, label string) (int, error)
}

type CommitGuard interface {
	Acquire(ctx context.Context) (func(), error)
}
