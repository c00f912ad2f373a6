package promptbench

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Judge scores whether a free-text response satisfies a set of expected
// substrings when plain strings.Contains is ambiguous (paraphrased output,
// synonyms). Optional: a harness with no Judge configured just relies on
// substring matching (spec §4.12: "substring matching is ambiguous").
type Judge interface {
	Matches(ctx context.Context, response string, mustContain []string) (bool, error)
}

// AnthropicJudge asks a Claude model whether response conveys at least one
// of the expectations in mustContain, grounded on goadesign-goa-ai's anthropic
// client adapter (features/model/anthropic/client.go): a single
// Messages.New call with a text-only user turn.
type AnthropicJudge struct {
	client *sdk.Client
	model  string
}

// NewAnthropicJudge builds a Judge from an API key and model id.
func NewAnthropicJudge(apiKey, modelID string) *AnthropicJudge {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicJudge{client: &c, model: modelID}
}

func (j *AnthropicJudge) Matches(ctx context.Context, response string, mustContain []string) (bool, error) {
	prompt := fmt.Sprintf(
		"Response:\n%s\n\nDoes the response above convey, in substance, at least one of the following points?\n- %s\n\nAnswer with exactly one word: yes or no.",
		response, strings.Join(mustContain, "\n- "),
	)

	msg, err := j.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(j.model),
		MaxTokens: 8,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return false, fmt.Errorf("promptbench: judge call: %w", err)
	}

	var answer strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}
	return strings.Contains(strings.ToLower(answer.String()), "yes"), nil
}
