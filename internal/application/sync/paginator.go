package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mailfootprint/internal/domain/email"
)

const (
	DefaultPageSize  = 100
	DefaultPageDelay = 2 * time.Second
	DefaultMaxPages  = 1000
)

// Paginator walks one label's message list page by page with a fixed
// delay between requests.
type Paginator struct {
	mailbox   Mailbox
	pageSize  int
	pageDelay time.Duration
	maxPages  int
	logger    zerolog.Logger

	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewPaginator(mailbox Mailbox, pageSize int, pageDelay time.Duration, maxPages int, logger zerolog.Logger) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageDelay < 0 {
		pageDelay = 0
	}
	return &Paginator{
		mailbox:   mailbox,
		pageSize:  pageSize,
		pageDelay: pageDelay,
		maxPages:  maxPages,
		logger:    logger,
		Sleep:     sleep,
	}
}

// ListAll returns every ref under label in listing order. Any failed page
// aborts the label with a *email.FetchError.
func (p *Paginator) ListAll(ctx context.Context, label string, cred email.Credential) ([]email.MessageRef, error) {
	var all []email.MessageRef
	pageToken := ""

	for batch := 1; ; batch++ {
		page, err := p.mailbox.ListPage(ctx, cred, label, pageToken, p.pageSize)
		if err != nil {
			return nil, &email.FetchError{Label: label, Err: fmt.Errorf("page %d: %w", batch, err)}
		}

		all = append(all, page.Refs...)
		p.logger.Info().
			Str("label", label).
			Int("batch", batch).
			Int("count", len(page.Refs)).
			Msg("fetched page")

		if page.NextPageToken == "" {
			break
		}
		if p.maxPages > 0 && batch >= p.maxPages {
			return nil, &email.FetchError{
				Label: label,
				Err:   fmt.Errorf("%w: more than %d pages", email.ErrPaginationLimitExceeded, p.maxPages),
			}
		}
		pageToken = page.NextPageToken

		if err := p.Sleep(ctx, p.pageDelay); err != nil {
			return nil, &email.FetchError{Label: label, Err: err}
		}
	}

	p.logger.Info().Str("label", label).Int("total", len(all)).Msg("label listed")
	return all, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("page delay canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
