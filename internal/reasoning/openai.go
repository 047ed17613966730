package reasoning

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultModel = "gpt-4o-mini"

var prompts = map[Operation]string{
	OpOffers: `You price home repair jobs for a contractor marketplace. Reply with JSON only:
{"offers":[{"contractorId":string,"contractorName":string,"price":number,"eta":string,"message":string,"rating":number,"type":"fast"|"budget"}]}
Return exactly two offers: a fast premium one and a slower budget one.`,
	OpTriage: `You triage home repair photos. Reply with JSON only, using the keys
suspected_issue, confidence, photo_insights, possible_causes, clarifying_questions
(objects with question and options), common_fixes (objects with name, time_min,
parts, est as [low, high]), risk_notes and local_price_band.`,
}

// OpenAIBackend sends each request as the user turn of a chat completion.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIBackend{client: openai.NewClient(opts...), model: model}
}

func (b *OpenAIBackend) Call(ctx context.Context, op Operation, request []byte) ([]byte, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompts[op]),
			openai.UserMessage(string(request)),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &ExternalError{Op: op, StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, &ExternalError{Op: op, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ExternalError{Op: op, Err: errors.New("no choices in completion")}
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
