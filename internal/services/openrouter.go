package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// OpenRouter provides an implementation of the Bot interface for the models routed by OpenRouter.
type OpenRouter struct {
	apiKey   string
	model    string
	endpoint string

	client *http.Client

	logger *slog.Logger
}

type openRouterChatRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterStreamingResponse struct {
	Choices []struct {
		Delta        openRouterMessage `json:"delta"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	openRouterAPIEndpoint = "https://openrouter.ai/api/v1"
	openRouterDone        = "[DONE]"
)

// NewOpenRouter creates a new OpenRouter instance. An empty endpoint uses the public API.
func NewOpenRouter(apiKey, endpoint, model string, logger *slog.Logger) OpenRouter {
	if endpoint == "" {
		endpoint = openRouterAPIEndpoint
	}
	return OpenRouter{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "openrouter")),
	}
}

// Chat streams the model's answer through OpenRouter's chat completion API. A completion cut short by
// the model's length limit ends with ErrTruncated.
func (o OpenRouter) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req, err := o.newRequest(ctx, messages)
		if err != nil {
			yield("", err)
			return
		}

		resp, err := o.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			yield("", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body)))
			return
		}

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}
			if ev.Data == openRouterDone {
				return
			}

			text, err := o.decodeChunk(ev.Data)
			if text != "" && !yield(text, nil) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}

func (o OpenRouter) newRequest(ctx context.Context, messages []models.Message) (*http.Request, error) {
	body := openRouterChatRequest{
		Model:    o.model,
		Messages: make([]openRouterMessage, 0, len(messages)),
		Stream:   true,
	}
	for _, msg := range messages {
		body.Messages = append(body.Messages, openRouterMessage{Role: string(msg.Role), Content: msg.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/chat/completions",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	return req, nil
}

// decodeChunk returns the text carried by one streamed chunk. The text is returned alongside
// ErrTruncated so the last words are not lost.
func (o OpenRouter) decodeChunk(data string) (string, error) {
	var res openRouterStreamingResponse
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}
	if res.Error != nil {
		return "", fmt.Errorf("openrouter error %d: %s", res.Error.Code, res.Error.Message)
	}
	if len(res.Choices) == 0 {
		return "", nil
	}

	choice := res.Choices[0]
	switch choice.FinishReason {
	case "", "stop":
	case "length":
		return choice.Delta.Content, ErrTruncated
	default:
		o.logger.Warn("Completion finished early", slog.String("reason", choice.FinishReason))
	}
	return choice.Delta.Content, nil
}
