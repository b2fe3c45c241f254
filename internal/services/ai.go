package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/tasko/internal/models"
)

// TaskSuggester turns free text into draft tasks.
type TaskSuggester interface {
	SuggestTasks(ctx context.Context, projectName, text string) ([]GeneratedTask, error)
}

type AIService struct {
	client *openai.Client
}

type GeneratedTask struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
}

func NewAIService(apiKey string) *AIService {
	return &AIService{
		client: openai.NewClient(apiKey),
	}
}

// SuggestTasks asks the model to extract concrete tasks from text
func (s *AIService) SuggestTasks(ctx context.Context, projectName, text string) ([]GeneratedTask, error) {
	if s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	currentTime := time.Now().Format("2006-01-02 15:04:05")
	prompt := fmt.Sprintf(`You are a task extraction assistant for the project "%s". Extract concrete, actionable tasks from the text below.

Current time: %s

Text:
%s

Return a JSON array of tasks in this format:
[
  {
    "title": "short task title",
    "description": "task details",
    "priority": "low | medium | high",
    "due_date": "deadline in ISO8601 (e.g. 2025-10-28T23:59:59Z), or null if none is stated"
  }
]

Rules:
- Return [] if there are no tasks
- Convert relative deadlines ("tomorrow", "next week") to absolute timestamps
- due_date must be an ISO8601 string or null
- Return only JSON, without any explanation`, projectName, currentTime, text)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)

	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return parseGeneratedTasks(resp.Choices[0].Message.Content)
}

// parseGeneratedTasks decodes the model output, tolerating a fenced code block.
func parseGeneratedTasks(content string) ([]GeneratedTask, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var tasks []GeneratedTask
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w (response: %s)", err, content)
	}

	return tasks, nil
}
