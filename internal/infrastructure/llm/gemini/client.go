package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kirillkom/extraction-workbench/internal/infrastructure/llm"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/resilience"
)

var errEmptyResponse = errors.New("no response generated from model")

// generator is the slice of genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client is an llm.Completer backed by the Gemini API.
type Client struct {
	models       generator
	defaultModel string
	executor     *resilience.Executor
}

func New(ctx context.Context, apiKey, defaultModel string, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return &Client{models: client.Models, defaultModel: defaultModel, executor: executor}, nil
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	config := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(req.Temperature)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	const operation = "gemini.generate"
	answer, err := resilience.Call(ctx, c.executor, operation, func(ctx context.Context) (string, error) {
		resp, err := c.models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			return "", fmt.Errorf("generate content with %s: %w", model, err)
		}
		return responseText(resp)
	}, classifyGeminiError)
	if err != nil {
		return "", resilience.MarkTemporary(operation, err, classifyGeminiError)
	}
	return answer, nil
}

// responseText joins the text parts of the first candidate that has any.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	var b strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part != nil && part.Text != "" {
					b.WriteString(part.Text)
				}
			}
			if b.Len() > 0 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "", errEmptyResponse
	}
	return strings.TrimSpace(b.String()), nil
}

// classifyGeminiError retries rate limits and unavailability. The SDK reports both
// only through the error text.
func classifyGeminiError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{}
	}
	if resilience.IsCircuitOpen(err) || errors.Is(err, errEmptyResponse) {
		return resilience.Verdict{Retryable: true, Trips: true}
	}
	msg := err.Error()
	for _, marker := range []string{"429", "RESOURCE_EXHAUSTED", "quota", "503", "UNAVAILABLE", "500", "INTERNAL"} {
		if strings.Contains(msg, marker) {
			return resilience.Verdict{Retryable: true, Trips: true}
		}
	}
	return resilience.Verdict{Trips: true}
}
