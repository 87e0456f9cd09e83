package state

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const DefaultGuardWait = 30 * time.Second

// ResetStateUseCase clears records and counters in one overwrite and stamps
// the reset time. It holds the commit guard so no sync commit interleaves.
type ResetStateUseCase struct {
	store     Resetter
	guard     CommitGuard
	guardWait time.Duration
	logger    zerolog.Logger

	Clock func() time.Time
}

func NewResetStateUseCase(store Resetter, guard CommitGuard, guardWait time.Duration, logger zerolog.Logger) *ResetStateUseCase {
	if guardWait <= 0 {
		guardWait = DefaultGuardWait
	}
	return &ResetStateUseCase{
		store:     store,
		guard:     guard,
		guardWait: guardWait,
		logger:    logger,
		Clock:     time.Now,
	}
}

func (uc *ResetStateUseCase) Execute(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, uc.guardWait)
	defer cancel()

	release, err := uc.guard.Acquire(waitCtx)
	if err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	defer release()

	now := uc.Clock()
	if err := uc.store.Reset(ctx, now); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}

	uc.logger.Info().Time("at", now).Msg("state reset")
	return nil
}
