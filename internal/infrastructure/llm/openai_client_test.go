package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailfootprint/internal/application/report"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", "", option.WithBaseURL(srv.URL+"/v1/"), option.WithMaxRetries(0))
	require.NoError(t, err)
	return c
}

func TestAdvise(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Contains(t, req.Messages[0].Content, "news@shop.io: 40")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  \"Unsubscribe from news@shop.io.\"  "}}]
		}`))
	})

	tip, err := c.Advise(context.Background(), report.Summary{
		Inbox:      120,
		Sent:       4,
		TopSenders: []report.SenderCount{{Address: "news@shop.io", Count: 40}},
		Suggestion: report.SuggestOrganized,
	})
	require.NoError(t, err)
	require.Equal(t, "Unsubscribe from news@shop.io.", tip)
}

func TestAdviseAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	_, err := c.Advise(context.Background(), report.Summary{})
	require.ErrorContains(t, err, "openai api error")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("", "gpt-4o-mini")
	require.Error(t, err)
}
