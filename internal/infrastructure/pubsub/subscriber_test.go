package pubsub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"mailfootprint/internal/domain/email"
)

func newFakeSubscriber(t *testing.T) (*Subscriber, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	sub, err := NewSubscriber(ctx, "test-project", "sync-trigger", zerolog.Nop(), option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	topic, err := sub.client.CreateTopic(ctx, "sync-topic")
	require.NoError(t, err)
	_, err = sub.client.CreateSubscription(ctx, "sync-trigger", pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	require.NoError(t, err)

	return sub, topic
}

func publish(t *testing.T, topic *pubsub.Topic, data string) {
	t.Helper()
	_, err := topic.Publish(context.Background(), &pubsub.Message{Data: []byte(data)}).Get(context.Background())
	require.NoError(t, err)
}

func TestListenDeliversActions(t *testing.T) {
	sub, topic := newFakeSubscriber(t)
	publish(t, topic, `not json`)
	publish(t, topic, `{"action":"fetchEmails"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var got []string
	err := sub.Listen(ctx, func(_ context.Context, action string) error {
		got = append(got, action)
		cancel()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"fetchEmails"}, got)
}

func TestListenRedeliversRetryable(t *testing.T) {
	sub, topic := newFakeSubscriber(t)
	publish(t, topic, `{"action":"fetchEmails"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	calls := 0
	err := sub.Listen(ctx, func(_ context.Context, action string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return fmt.Errorf("%w: reset in progress", email.ErrBusy)
		}
		cancel()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestParseTrigger(t *testing.T) {
	tr, err := parseTrigger([]byte(`{"action":"ping"}`))
	require.NoError(t, err)
	require.Equal(t, "ping", tr.Action)

	_, err = parseTrigger([]byte(`{}`))
	require.Error(t, err)
}
