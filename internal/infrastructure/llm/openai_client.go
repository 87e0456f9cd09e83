package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"mailfootprint/internal/application/report"
)

type Client struct {
	api   openai.Client
	model string
}

// NewClient builds an advisor client. Extra options are appended after the
// API key, which lets tests point it at a local server.
func NewClient(apiKey, model string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)

	return &Client{
		api:   client,
		model: model,
	}, nil
}

// Advise asks the model for one short, concrete tip based on the summary.
func (c *Client) Advise(ctx context.Context, s report.Summary) (string, error) {
	var senders strings.Builder
	for _, sc := range s.TopSenders {
		fmt.Fprintf(&senders, "- %s: %d\n", sc.Address, sc.Count)
	}
	if senders.Len() == 0 {
		senders.WriteString("- unknown\n")
	}

	prompt := fmt.Sprintf(`You help people reduce the carbon footprint of their mailbox.
Reply with ONE short sentence of plain text, no markdown, in English.

Inbox emails: %d
Sent emails: %d
Estimated CO2: %.3f kg
Estimated energy: %.4f kWh
Top senders:
%s
Current tip: %s

Give a more specific tip than the current one, naming a sender when it helps.`,
		s.Inbox, s.Sent, s.CO2Kg, s.EnergyKWh, senders.String(), s.Suggestion)

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty LLM response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	text = strings.Trim(text, "`\"")
	return strings.TrimSpace(text), nil
}
