package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultOpenAIModel = "gpt-5-nano"

type OpenAIClient struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient builds a chat completions client. httpClient and logger may be nil.
func NewOpenAIClient(apiKey, model string, httpClient *http.Client, logger *slog.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

func (o *OpenAIClient) Understand(ctx context.Context, req Request) (Response, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(prompt(req)),
		},
		Tools: openaiTools(),
		Model: openai.ChatModel(o.model),
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Response{}, errors.New("no choices in response")
	}

	msg := resp.Choices[0].Message

	var out Response
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				// Keep the call so every call still yields one intent.
				o.logger.Warn("Tool call with bad arguments", "name", tc.Function.Name, "raw", tc.Function.Arguments, "err", err)
				args = map[string]any{}
			}
		}
		out.Calls = append(out.Calls, Call{Name: tc.Function.Name, Args: args})
	}
	if len(out.Calls) == 0 {
		out.Text = msg.Content
	}

	return out, nil
}

func openaiTools() []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(toolSpecs))
	for _, t := range toolSpecs {
		tools = append(tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        string(t.name),
			Description: openai.String(t.desc),
			Parameters:  openaiParameters(t),
		}))
	}
	return tools
}

func openaiParameters(t toolSpec) openai.FunctionParameters {
	props := make(map[string]any, len(t.params))
	for _, p := range t.params {
		prop := map[string]any{
			"type":        "string",
			"description": p.desc,
		}
		if len(p.enum) > 0 {
			prop["enum"] = p.enum
		}
		props[p.name] = prop
	}

	required := t.required
	if required == nil {
		required = []string{}
	}

	return openai.FunctionParameters{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
