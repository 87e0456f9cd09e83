package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mailfootprint/internal/application/lock"
	"mailfootprint/internal/domain/email"
)

type fakeStore struct {
	resets   []time.Time
	counters []email.Counters
	err      error
}

func (f *fakeStore) Reset(_ context.Context, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.resets = append(f.resets, at)
	return nil
}

func (f *fakeStore) SetCounters(_ context.Context, c email.Counters) error {
	if f.err != nil {
		return f.err
	}
	f.counters = append(f.counters, c)
	return nil
}

type fakeCredentials struct {
	interactive []bool
	err         error
}

func (f *fakeCredentials) Acquire(_ context.Context, interactive bool) (email.Credential, error) {
	f.interactive = append(f.interactive, interactive)
	if f.err != nil {
		return email.Credential{}, f.err
	}
	return email.Credential{Value: "tok"}, nil
}

type fakeCounter map[string]int

func (f fakeCounter) LabelTotal(_ context.Context, _ email.Credential, label string) (int, error) {
	n, ok := f[label]
	if !ok {
		return 0, errors.New("label not found")
	}
	return n, nil
}

func TestResetState(t *testing.T) {
	st := &fakeStore{}
	at := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	uc := NewResetStateUseCase(st, lock.NewGuard(), time.Second, zerolog.Nop())
	uc.Clock = func() time.Time { return at }

	require.NoError(t, uc.Execute(context.Background()))
	require.Equal(t, []time.Time{at}, st.resets)
}

func TestResetStateWaitsForGuard(t *testing.T) {
	guard := lock.NewGuard()
	release, err := guard.Acquire(context.Background())
	require.NoError(t, err)

	st := &fakeStore{}
	uc := NewResetStateUseCase(st, guard, 10*time.Millisecond, zerolog.Nop())

	err = uc.Execute(context.Background())
	require.ErrorIs(t, err, email.ErrBusy)
	require.Empty(t, st.resets)

	release()
	require.NoError(t, uc.Execute(context.Background()))
	require.Len(t, st.resets, 1)
}

func TestRefreshCounters(t *testing.T) {
	st := &fakeStore{}
	creds := &fakeCredentials{}
	uc := NewRefreshCountersUseCase(creds, fakeCounter{"INBOX": 1520, "SENT": 311}, st, zerolog.Nop())

	got, err := uc.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, email.Counters{Inbox: 1520, Sent: 311, Total: 1831}, got)
	require.Equal(t, []email.Counters{got}, st.counters)
	require.Equal(t, []bool{false}, creds.interactive)
}

func TestRefreshCountersFailures(t *testing.T) {
	st := &fakeStore{}
	uc := NewRefreshCountersUseCase(&fakeCredentials{err: email.ErrAuthUnavailable}, fakeCounter{}, st, zerolog.Nop())
	_, err := uc.Execute(context.Background())
	require.ErrorIs(t, err, email.ErrAuthUnavailable)

	uc = NewRefreshCountersUseCase(&fakeCredentials{}, fakeCounter{"INBOX": 3}, st, zerolog.Nop())
	_, err = uc.Execute(context.Background())
	require.ErrorContains(t, err, "count SENT")
	require.Empty(t, st.counters)
}
