// Package genaiadapter implements ports.ChatCompleter against the Google
// GenAI API.
package genaiadapter

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"basehub/contexts/ai-core/llm-orchestrator/ports"
)

type Completer struct {
	client *genai.Client
}

func NewCompleter(ctx context.Context, apiKey string) (*Completer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Completer{client: client}, nil
}

func (c *Completer) Complete(ctx context.Context, model string, system string, messages []ports.ChatMessage) (ports.Completion, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		var role genai.Role = genai.RoleUser
		if message.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Content, role))
	}

	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ports.Completion{}, fmt.Errorf("empty completion response")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}

	completion := ports.Completion{Content: text}
	if resp.UsageMetadata != nil {
		completion.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		completion.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return completion, nil
}
