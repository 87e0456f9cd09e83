package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mailfootprint/internal/domain/email"
)

const DefaultCommitWait = 30 * time.Second

type Options struct {
	PageSize          int
	PageDelay         time.Duration
	MaxPages          int
	DetailDelay       time.Duration
	DetailConcurrency int
	Interactive       bool
	CommitWait        time.Duration
}

// SyncMailboxUseCase lists INBOX and SENT, fetches details for both and
// replaces the persisted records in a single commit.
type SyncMailboxUseCase struct {
	credentials CredentialProvider
	paginator   *Paginator
	fetcher     *Fetcher
	store       StateStore
	guard       CommitGuard
	interactive bool
	commitWait  time.Duration
	logger      zerolog.Logger

	Clock func() time.Time
}

func NewSyncMailboxUseCase(
	credentials CredentialProvider,
	mailbox Mailbox,
	store StateStore,
	guard CommitGuard,
	opts Options,
	logger zerolog.Logger,
) *SyncMailboxUseCase {
	if opts.CommitWait <= 0 {
		opts.CommitWait = DefaultCommitWait
	}
	return &SyncMailboxUseCase{
		credentials: credentials,
		paginator:   NewPaginator(mailbox, opts.PageSize, opts.PageDelay, opts.MaxPages, logger),
		fetcher:     NewFetcher(mailbox, opts.DetailConcurrency, opts.DetailDelay, logger),
		store:       store,
		guard:       guard,
		interactive: opts.Interactive,
		commitWait:  opts.CommitWait,
		logger:      logger,
		Clock:       time.Now,
	}
}

// Paginator exposes the pager so callers can tune its sleep.
func (uc *SyncMailboxUseCase) Paginator() *Paginator {
	return uc.paginator
}

// Execute runs one sync. On any error the persisted state is untouched.
func (uc *SyncMailboxUseCase) Execute(ctx context.Context) (email.SyncStats, error) {
	runID := uuid.NewString()
	log := uc.logger.With().Str("run", runID).Logger()
	log.Info().Msg("sync started")

	epoch, err := uc.store.LastReset(ctx)
	if err != nil {
		return email.SyncStats{}, uc.fail(log, "read state", fmt.Errorf("%w: %v", email.ErrPersistFailure, err))
	}

	inbox, err := uc.listLabel(ctx, email.LabelInbox)
	if err != nil {
		return email.SyncStats{}, uc.fail(log, "list "+email.LabelInbox, err)
	}
	sent, err := uc.listLabel(ctx, email.LabelSent)
	if err != nil {
		return email.SyncStats{}, uc.fail(log, "list "+email.LabelSent, err)
	}
	log.Info().Int("inbox", len(inbox)).Int("sent", len(sent)).Msg("labels listed")

	refs := make([]email.MessageRef, 0, len(inbox)+len(sent))
	refs = append(refs, inbox...)
	refs = append(refs, sent...)

	cred, err := uc.credentials.Acquire(ctx, uc.interactive)
	if err != nil {
		return email.SyncStats{}, uc.fail(log, "fetch details", err)
	}
	records, err := uc.fetcher.FetchDetails(ctx, cred, refs)
	if err != nil {
		return email.SyncStats{}, uc.fail(log, "fetch details", err)
	}

	result := email.SyncResult{Records: records, FetchedAt: uc.Clock()}
	if err := uc.commit(ctx, result, epoch); err != nil {
		return email.SyncStats{}, uc.fail(log, "commit", err)
	}

	log.Info().Int("records", len(records)).Msg("sync committed")
	return email.SyncStats{RunID: runID, Count: len(records), FetchedAt: result.FetchedAt}, nil
}

// RequestSync is the trigger entry point. It never returns an error; the
// outcome is carried in the response.
func (uc *SyncMailboxUseCase) RequestSync(ctx context.Context) email.SyncResponse {
	_, err := uc.Execute(ctx)
	return email.ResponseFor(err)
}

func (uc *SyncMailboxUseCase) listLabel(ctx context.Context, label string) ([]email.MessageRef, error) {
	cred, err := uc.credentials.Acquire(ctx, uc.interactive)
	if err != nil {
		return nil, err
	}
	return uc.paginator.ListAll(ctx, label, cred)
}

func (uc *SyncMailboxUseCase) commit(ctx context.Context, result email.SyncResult, epoch string) error {
	waitCtx, cancel := context.WithTimeout(ctx, uc.commitWait)
	defer cancel()

	release, err := uc.guard.Acquire(waitCtx)
	if err != nil {
		return err
	}
	defer release()

	return uc.store.Commit(ctx, result, epoch)
}

func (uc *SyncMailboxUseCase) fail(log zerolog.Logger, stage string, err error) error {
	log.Error().Err(err).Str("stage", stage).Msg("sync failed")
	return &email.SyncError{Stage: stage, Err: err}
}
