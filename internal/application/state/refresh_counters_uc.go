package state

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mailfootprint/internal/domain/email"
)

// RefreshCountersUseCase keeps the live Inbox/Sent estimate current. It
// never touches mail records.
type RefreshCountersUseCase struct {
	credentials CredentialProvider
	counter     LabelCounter
	store       CountersWriter
	logger      zerolog.Logger
}

func NewRefreshCountersUseCase(credentials CredentialProvider, counter LabelCounter, store CountersWriter, logger zerolog.Logger) *RefreshCountersUseCase {
	return &RefreshCountersUseCase{
		credentials: credentials,
		counter:     counter,
		store:       store,
		logger:      logger,
	}
}

func (uc *RefreshCountersUseCase) Execute(ctx context.Context) (email.Counters, error) {
	cred, err := uc.credentials.Acquire(ctx, false)
	if err != nil {
		return email.Counters{}, fmt.Errorf("refresh counters: %w", err)
	}

	inbox, err := uc.counter.LabelTotal(ctx, cred, email.LabelInbox)
	if err != nil {
		return email.Counters{}, fmt.Errorf("count %s: %w", email.LabelInbox, err)
	}
	sent, err := uc.counter.LabelTotal(ctx, cred, email.LabelSent)
	if err != nil {
		return email.Counters{}, fmt.Errorf("count %s: %w", email.LabelSent, err)
	}

	counters := email.NewCounters(inbox, sent)
	if err := uc.store.SetCounters(ctx, counters); err != nil {
		return email.Counters{}, fmt.Errorf("save counters: %w", err)
	}

	uc.logger.Debug().
		Int("inbox", counters.Inbox).
		Int("sent", counters.Sent).
		Int("total", counters.Total).
		Msg("counters refreshed")
	return counters, nil
}
