package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic is a Bot backed by the Anthropic Messages API, streamed over server-sent events.
type Anthropic struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string

	client *http.Client
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicEvent covers the stream events Chat acts on: content_block_delta carries text,
// message_delta carries the stop reason and error carries a failure.
type anthropicEvent struct {
	Delta struct {
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ErrTruncated is returned when a bot stops because it hit its token limit.
var ErrTruncated = errors.New("answer truncated at the token limit")

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
	anthropicAPIVersion  = "2023-06-01"
)

// NewAnthropic creates an Anthropic bot. An empty endpoint uses the public API.
func NewAnthropic(apiKey, endpoint, model string, maxTokens int) Anthropic {
	if endpoint == "" {
		endpoint = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		endpoint:  endpoint,
		client:    &http.Client{},
	}
}

// splitSystem separates the system messages, which Anthropic takes as a dedicated field, from the
// conversation.
func splitSystem(messages []models.Message) (string, []models.Message) {
	var system string
	rest := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}

// Chat streams the answer of the Messages API. System messages go to the dedicated system field.
func (a Anthropic) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req, err := a.newRequest(ctx, messages)
		if err != nil {
			yield("", err)
			return
		}

		resp, err := a.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield("", anthropicStatusError(resp))
			return
		}

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}

			var e anthropicEvent
			switch ev.Type {
			case "content_block_delta", "message_delta", "error":
				if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
					yield("", fmt.Errorf("error unmarshaling %s event: %w", ev.Type, err))
					return
				}
			case "message_stop":
				return
			default:
				continue
			}

			switch {
			case ev.Type == "error":
				yield("", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			case e.Delta.StopReason == "max_tokens":
				yield("", ErrTruncated)
				return
			case e.Delta.Text != "":
				if !yield(e.Delta.Text, nil) {
					return
				}
			}
		}
	}
}

func (a Anthropic) newRequest(ctx context.Context, messages []models.Message) (*http.Request, error) {
	system, conversation := splitSystem(messages)

	body := anthropicChatRequest{
		Model:     a.model,
		Messages:  make([]anthropicMessage, 0, len(conversation)),
		System:    system,
		MaxTokens: a.maxTokens,
		Stream:    true,
	}
	for _, msg := range conversation {
		body.Messages = append(body.Messages, anthropicMessage{Role: string(msg.Role), Content: msg.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	return req, nil
}

func anthropicStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var e anthropicEvent
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message)
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}
