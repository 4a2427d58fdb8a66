package nlu

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient builds a Gemini API client. httpClient may be nil.
func NewGeminiClient(ctx context.Context, apiKey, model string, httpClient *http.Client) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &GeminiClient{client: c, model: model}, nil
}

func (g *GeminiClient) Understand(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
		},
		Tools: []*genai.Tool{{FunctionDeclarations: geminiDeclarations()}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt(req)), cfg)
	if err != nil {
		return Response{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Response{}, errors.New("gemini: no candidates")
	}

	var out Response
	for _, fc := range resp.FunctionCalls() {
		out.Calls = append(out.Calls, Call{Name: fc.Name, Args: fc.Args})
	}
	if len(out.Calls) == 0 {
		out.Text = resp.Text()
	}

	return out, nil
}

func geminiDeclarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(toolSpecs))
	for _, t := range toolSpecs {
		props := make(map[string]*genai.Schema, len(t.params))
		for _, p := range t.params {
			props[p.name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.desc,
				Enum:        p.enum,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(t.name),
			Description: t.desc,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.required,
			},
		})
	}
	return decls
}
