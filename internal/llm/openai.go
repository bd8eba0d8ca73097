package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Zuo-Peng/opencontext/internal/config"
)

const temperature = 0.3

// OpenAI is a Completer for any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAI builds a client for the configured model. The provider prefix
// of the model name selects the endpoint and the key variable.
func NewOpenAI(cfg config.LLMConfig) (*OpenAI, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		if err := cfg.CheckAPIKey(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAPIKey, err)
		}
		return nil, ErrNoAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithRequestTimeout(cfg.Timeout()),
		option.WithMaxRetries(2),
	}
	if ep := cfg.Endpoint(); ep != "" {
		opts = append(opts, option.WithBaseURL(ep))
	}

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     cfg.ModelName(),
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(temperature),
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.maxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("no choices in reply")
	}

	model := resp.Model
	if model == "" {
		model = o.model
	}
	return Response{Content: resp.Choices[0].Message.Content, Model: model}, nil
}
