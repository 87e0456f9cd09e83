package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"mailfootprint/internal/domain/email"
)

const progressEvery = 100

// Fetcher retrieves header metadata for each ref and classifies it.
// Items that fail or come back without headers are logged and dropped.
type Fetcher struct {
	mailbox     Mailbox
	concurrency int
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

// NewFetcher builds a fetcher. A concurrency of 1 keeps requests strictly
// sequential. A positive delay spaces consecutive requests.
func NewFetcher(mailbox Mailbox, concurrency int, delay time.Duration, logger zerolog.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Fetcher{
		mailbox:     mailbox,
		concurrency: concurrency,
		limiter:     limiter,
		logger:      logger,
	}
}

// FetchDetails returns records in the same order as refs, minus skipped
// items. It fails only when ctx is cancelled or the mailbox refuses to
// serve requests at all.
func (f *Fetcher) FetchDetails(ctx context.Context, cred email.Credential, refs []email.MessageRef) ([]email.MessageRecord, error) {
	slots := make([]*email.MessageRecord, len(refs))
	var done, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := f.fetchOne(gctx, cred, ref)
			if err != nil {
				return err
			}
			if rec == nil {
				skipped.Add(1)
			}
			slots[i] = rec

			if n := done.Add(1); n%progressEvery == 0 {
				f.logger.Info().Int64("done", n).Int("of", len(refs)).Msg("fetched details batch")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}

	out := make([]email.MessageRecord, 0, len(refs))
	for _, rec := range slots {
		if rec != nil {
			out = append(out, *rec)
		}
	}

	f.logger.Info().
		Int("requested", len(refs)).
		Int("records", len(out)).
		Int64("skipped", skipped.Load()).
		Msg("details fetched")
	return out, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, cred email.Credential, ref email.MessageRef) (*email.MessageRecord, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("detail throttle: %w", err)
		}
	}

	detail, err := f.mailbox.GetMetadata(ctx, cred, ref.ID, email.MetadataHeaders)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// never sent, so skipping would silently drop a healthy message
		if errors.Is(err, email.ErrMailboxUnavailable) {
			return nil, fmt.Errorf("detail %s: %w", ref.ID, err)
		}
		f.logger.Warn().Err(err).Str("id", ref.ID).Str("reason", "request failed").Msg("detail skipped")
		return nil, nil
	}
	if detail.Malformed {
		f.logger.Warn().Str("id", ref.ID).Str("reason", "payload or headers missing").Msg("detail skipped")
		return nil, nil
	}

	rec := email.Classify(detail.LabelIDs, detail.Headers)
	return &rec, nil
}
