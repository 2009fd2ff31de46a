package chat

import (
	"context"
	"fmt"
	"strings"

	"safety-monitor/distress"

	"google.golang.org/genai"
)

const model = "gemini-2.5-flash"

const systemPrompt = `You are a calm personal-safety assistant built into a distress monitoring app.
The app listens for screams, unusual noise, sudden device movement and spoken distress keywords,
and may alert the user's emergency contacts.
You help users with:
- Understanding why the monitor raised (or did not raise) an alert
- What to do right now if they feel unsafe
- Managing emergency contacts and monitoring settings

If the user says they are in danger, tell them to contact local emergency services first.
Be brief, direct and reassuring. Keep responses under 150 words.`

// GeminiClient answers user questions with the current verdict as context.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// BuildPrompt prefixes message with a summary of the latest verdict, if any.
func BuildPrompt(message string, result *distress.DetectionResult) string {
	if result == nil {
		return message
	}

	var b strings.Builder
	b.WriteString("Current monitor status:\n")
	fmt.Fprintf(&b, "- distress level: %s\n", result.DistressLevel)
	fmt.Fprintf(&b, "- scream confidence: %d%%\n", distress.ConfidencePercent(result.ScreamConfidence))
	fmt.Fprintf(&b, "- recommended action: %s\n", result.RecommendedAction)
	if result.AccelerometerSpike {
		b.WriteString("- sudden device movement detected\n")
	}
	if result.KeywordDetected != "" {
		fmt.Fprintf(&b, "- distress keyword heard: %q\n", result.KeywordDetected)
	}
	b.WriteString("\nUser message: ")
	b.WriteString(message)
	return b.String()
}

func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleModel),
		Temperature:       genai.Ptr(float32(0.4)),
		TopP:              genai.Ptr(float32(0.8)),
		TopK:              genai.Ptr(float32(40)),
		MaxOutputTokens:   int32(250),
	}
}

func (g *GeminiClient) GenerateResponse(ctx context.Context, message string, result *distress.DetectionResult) (string, error) {
	userContent := genai.NewContentFromText(BuildPrompt(message, result), genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, model, []*genai.Content{userContent}, generationConfig())
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "I'm sorry, I couldn't generate a response. If you feel unsafe, contact local emergency services.", nil
	}

	return strings.ReplaceAll(text, "*", ""), nil
}

// GenerateResponseStream calls onChunk for every non-empty piece of the reply.
func (g *GeminiClient) GenerateResponseStream(ctx context.Context, message string, result *distress.DetectionResult, onChunk func(string) error) error {
	userContent := genai.NewContentFromText(BuildPrompt(message, result), genai.RoleUser)

	stream := g.client.Models.GenerateContentStream(ctx, model, []*genai.Content{userContent}, generationConfig())

	for resp, err := range stream {
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}

		text := resp.Text()
		if text == "" {
			continue
		}
		if err := onChunk(strings.ReplaceAll(text, "*", "")); err != nil {
			return fmt.Errorf("chunk callback error: %w", err)
		}
	}

	return nil
}

func (g *GeminiClient) Close() error {
	return nil
}
