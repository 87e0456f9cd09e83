package pubsub

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mailfootprint/internal/domain/email"
)

const (
	ActionFetchEmails = "fetchEmails"
	ActionPing        = "ping"
)

type SyncSubmitter interface {
	Submit(ctx context.Context) (email.SyncResponse, error)
}

// Handler turns trigger actions into queued syncs.
type Handler struct {
	queue  SyncSubmitter
	logger zerolog.Logger
}

func NewHandler(queue SyncSubmitter, logger zerolog.Logger) *Handler {
	return &Handler{
		queue:  queue,
		logger: logger,
	}
}

// HandleAction returns an error matching email.ErrBusy when the trigger
// should be delivered again later.
func (h *Handler) HandleAction(ctx context.Context, action string) error {
	switch action {
	case ActionPing:
		h.logger.Info().Msg("ping received")
		return nil
	case ActionFetchEmails:
	default:
		h.logger.Warn().Str("action", action).Msg("ignoring unknown action")
		return nil
	}

	resp, err := h.queue.Submit(ctx)
	if err != nil {
		return fmt.Errorf("submit sync: %w", err)
	}
	if resp.Status == email.StatusOK {
		h.logger.Info().Msg("triggered sync completed")
		return nil
	}
	if resp.Retryable {
		return fmt.Errorf("%w: %s", email.ErrBusy, resp.Detail)
	}
	return fmt.Errorf("sync: %s", resp.Detail)
}
