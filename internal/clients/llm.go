package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quizbuzz/exam-service/internal/models"
)

// GeneratedQuestion is one question as returned by the model, before
// normalization into the persistent model.
type GeneratedQuestion struct {
	QuestionNo int      `json:"questionNo"`
	Type       string   `json:"questionsType"`
	Question   string   `json:"question"`
	Additional []string `json:"additional"`
	Answer     string   `json:"qAnswer"`
}

// LLMClient wraps an OpenAI-compatible API for question generation
type LLMClient struct {
	api   *openai.Client
	model string
}

// NewLLMClient creates a question generation client
func NewLLMClient(baseURL, apiKey, modelName string) *LLMClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &LLMClient{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// GenerateQuestions asks the model for a question set. The raw response text
// is returned alongside the parsed set so parse failures can carry it upward.
func (c *LLMClient) GenerateQuestions(ctx context.Context, topic string, count int, types []string, materialContext string) ([]GeneratedQuestion, string, error) {
	systemPrompt := buildGenerationPrompt(count, types)

	userPrompt := fmt.Sprintf("Topic: %s", topic)
	if materialContext != "" {
		userPrompt = fmt.Sprintf("%s\n\nUse the following source material:\n%s", userPrompt, materialContext)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, "", fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	cleaned := StripCodeFences(raw)

	parsed, err := parseGeneratedSet(cleaned)
	if err != nil {
		return nil, raw, fmt.Errorf("parse LLM response: %w", err)
	}

	return parsed, raw, nil
}

// parseGeneratedSet accepts either a bare array or an object wrapping one
// under a "questions" key, which models produce interchangeably.
func parseGeneratedSet(payload string) ([]GeneratedQuestion, error) {
	var direct []GeneratedQuestion
	if err := json.Unmarshal([]byte(payload), &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Questions []GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Questions == nil {
		return nil, fmt.Errorf("no questions array in response")
	}
	return wrapped.Questions, nil
}

// StripCodeFences removes a surrounding markdown code fence if present
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop a language tag like "json" on the opening fence line.
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func buildGenerationPrompt(count int, types []string) string {
	typeList := strings.Join(types, ", ")
	if typeList == "" {
		typeList = fmt.Sprintf("%s, %s, %s", models.QuestionMCQ, models.QuestionTrueFalse, models.QuestionFillBlank)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an exam author. Generate exactly %d questions of types: %s.\n", count, typeList)
	b.WriteString(`Respond with a JSON object of the form {"questions": [...]} where each element has:
- "questionNo": 1-based sequential number
- "questionsType": one of "MCQ", "TrueFalse", "FillBlank"
- "question": the question text
- "additional": an array of exactly 4 option strings for MCQ, an empty array otherwise
- "qAnswer": the answer as literal text; for MCQ it must equal one of the options, for TrueFalse it must be "True" or "False"
Do not include explanations or any other keys.`)
	return b.String()
}
