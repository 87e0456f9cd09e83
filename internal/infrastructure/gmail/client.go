package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailfootprint/internal/domain/email"
)

const userID = "me"

// Client implements the mailbox reads the sync needs (adapter). Each call
// is authorized with the credential it is given.
type Client struct {
	endpoint string
	cb       *gobreaker.CircuitBreaker
	logger   zerolog.Logger
}

// NewClient creates a Gmail client. An empty endpoint uses the public API.
func NewClient(endpoint string, logger zerolog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
		},
	}

	return &Client{
		endpoint: endpoint,
		cb:       gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

func (c *Client) service(ctx context.Context, cred email.Credential) (*gmail.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Value, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create gmail service: %w", err)
	}
	return srv, nil
}

func (c *Client) ListPage(ctx context.Context, cred email.Credential, label, pageToken string, pageSize int) (email.Page, error) {
	srv, err := c.service(ctx, cred)
	if err != nil {
		return email.Page{}, err
	}

	call := srv.Users.Messages.List(userID).
		LabelIds(label).
		MaxResults(int64(pageSize))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	var resp *gmail.ListMessagesResponse
	err = c.execute(func() error {
		var err error
		resp, err = call.Context(ctx).Do()
		return err
	})
	if err != nil {
		return email.Page{}, fmt.Errorf("list messages: %w", err)
	}

	page := email.Page{NextPageToken: resp.NextPageToken}
	for _, m := range resp.Messages {
		page.Refs = append(page.Refs, email.MessageRef{ID: m.Id})
	}
	return page, nil
}

func (c *Client) GetMetadata(ctx context.Context, cred email.Credential, id string, headers []string) (email.MessageDetail, error) {
	srv, err := c.service(ctx, cred)
	if err != nil {
		return email.MessageDetail{}, err
	}

	var msg *gmail.Message
	err = c.execute(func() error {
		var err error
		msg, err = srv.Users.Messages.Get(userID, id).
			Format("metadata").
			MetadataHeaders(headers...).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return email.MessageDetail{}, fmt.Errorf("gmail get message: %w", err)
	}

	detail := email.MessageDetail{ID: id, LabelIDs: msg.LabelIds}
	if msg.Payload == nil || msg.Payload.Headers == nil {
		detail.Malformed = true
		return detail, nil
	}
	for _, h := range msg.Payload.Headers {
		detail.Headers = append(detail.Headers, email.Header{Name: h.Name, Value: h.Value})
	}
	return detail, nil
}

// LabelTotal returns the provider's message count for a system label.
func (c *Client) LabelTotal(ctx context.Context, cred email.Credential, label string) (int, error) {
	srv, err := c.service(ctx, cred)
	if err != nil {
		return 0, err
	}

	var l *gmail.Label
	err = c.execute(func() error {
		var err error
		l, err = srv.Users.Labels.Get(userID, label).Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("gmail get label %s: %w", label, err)
	}
	return int(l.MessagesTotal), nil
}

// nonCircuitError carries client-side failures through the breaker without
// counting them.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string { return e.err.Error() }

func (c *Client) execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		err := fn()
		if err == nil {
			return nil, nil
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return nil, &nonCircuitError{err: err}
		}
		return nil, err
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", email.ErrMailboxUnavailable, err)
	}
	return err
}
