package services

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"google.golang.org/genai"
)

// Gemini provides an implementation of the Bot interface using the Google Gen AI SDK.
type Gemini struct {
	model string

	client *genai.Client
}

// NewGemini creates a new Gemini instance talking to the Gemini API with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return Gemini{}, fmt.Errorf("failed to create genai client: %w", err)
	}
	return Gemini{
		model:  model,
		client: client,
	}, nil
}

// Chat streams the model's answer. System messages become the system instruction.
func (g Gemini) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var system *genai.Content
		var contents []*genai.Content
		for _, msg := range messages {
			part := &genai.Part{Text: msg.Content}
			switch msg.Role {
			case models.RoleSystem:
				if system == nil {
					system = &genai.Content{}
				}
				system.Parts = append(system.Parts, part)
			case models.RoleAssistant:
				contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{part}})
			default:
				contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
			}
		}

		config := &genai.GenerateContentConfig{
			SystemInstruction: system,
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}
			if resp == nil {
				continue
			}

			var sb strings.Builder
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					sb.WriteString(part.Text)
				}
			}
			if sb.Len() == 0 {
				continue
			}
			if !yield(sb.String(), nil) {
				return
			}
		}
	}
}
