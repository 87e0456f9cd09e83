package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"mailfootprint/internal/domain/email"
)

// Trigger is the command carried by a Pub/Sub message.
type Trigger struct {
	Action string `json:"action"`
}

// Subscriber receives sync triggers from a Pub/Sub subscription.
type Subscriber struct {
	client         *pubsub.Client
	subscriptionID string
	logger         zerolog.Logger
}

// NewSubscriber creates a new Pub/Sub subscriber
func NewSubscriber(ctx context.Context, projectID, subscriptionID string, logger zerolog.Logger, opts ...option.ClientOption) (*Subscriber, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &Subscriber{
		client:         client,
		subscriptionID: subscriptionID,
		logger:         logger,
	}, nil
}

// Listen blocks until ctx is done. Messages whose handling fails with a
// retryable error are nacked for redelivery; everything else is acked.
func (s *Subscriber) Listen(ctx context.Context, handler func(ctx context.Context, action string) error) error {
	sub := s.client.Subscription(s.subscriptionID)
	// one sync at a time
	sub.ReceiveSettings.NumGoroutines = 1
	sub.ReceiveSettings.MaxOutstandingMessages = 1

	s.logger.Info().Str("subscription", s.subscriptionID).Msg("pubsub listener started")

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		trigger, err := parseTrigger(m.Data)
		if err != nil {
			s.logger.Warn().Err(err).Str("message", m.ID).Msg("dropping unparseable trigger")
			m.Ack()
			return
		}

		if err := handler(ctx, trigger.Action); err != nil {
			if email.IsRetryable(err) {
				s.logger.Info().Err(err).Str("message", m.ID).Msg("trigger deferred")
				m.Nack()
				return
			}
			s.logger.Error().Err(err).Str("message", m.ID).Str("action", trigger.Action).Msg("trigger failed")
		}
		m.Ack()
	})
}

// Close closes the Pub/Sub client
func (s *Subscriber) Close() error {
	return s.client.Close()
}

func parseTrigger(data []byte) (*Trigger, error) {
	var t Trigger
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal trigger: %w", err)
	}
	if t.Action == "" {
		return nil, fmt.Errorf("trigger has no action")
	}
	return &t, nil
}
