package lock

import (
	"context"
	"fmt"
	"sync"

	"mailfootprint/internal/domain/email"
)

// Guard is a single in-process token held around every state write that
// replaces mail records or clears them.
type Guard struct {
	token chan struct{}
}

func NewGuard() *Guard {
	return &Guard{token: make(chan struct{}, 1)}
}

// Acquire waits for the token until ctx is done. The returned release func
// is safe to call more than once.
func (g *Guard) Acquire(ctx context.Context) (func(), error) {
	select {
	case g.token <- struct{}{}:
		return g.releaser(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: commit guard: %v", email.ErrBusy, ctx.Err())
	}
}

// TryAcquire returns ErrBusy immediately when the token is held.
func (g *Guard) TryAcquire() (func(), error) {
	select {
	case g.token <- struct{}{}:
		return g.releaser(), nil
	default:
		return nil, fmt.Errorf("%w: commit guard held", email.ErrBusy)
	}
}

func (g *Guard) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-g.token })
	}
}
