package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/mikey/mailflow-monitor/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ModelClient is an implementation of the core.ModelClient interface using OpenAI
type ModelClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	promptFormat  string
	textProcessor *utils.TextProcessor
}

// verdictResponse represents the structured verdict from the model
type verdictResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// NewModelClient creates a new OpenAI model client
func NewModelClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *ModelClient {
	client := openai.NewClient(apiKey)

	return &ModelClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are a spam classification system. Classify the following email as spam or ham.
Respond with a JSON object containing:
- label: "spam" or "ham"
- confidence: number between 0 and 1 (how confident you are in the label)
- reason: string (brief explanation for the label)

Email:
From: %s
To: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`,
	}
}

// ClassifyMessage classifies a message using the configured OpenAI model
func (c *ModelClient) ClassifyMessage(ctx context.Context, event *core.MessageEvent) (*core.ClassificationResult, error) {
	to := ""
	if len(event.Recipients) > 0 {
		to = event.Recipients[0]
		if len(event.Recipients) > 1 {
			to += fmt.Sprintf(" and %d others", len(event.Recipients)-1)
		}
	}

	processedBody := c.textProcessor.ProcessText(event.Body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, event.Sender, to, event.Subject, processedBody)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a spam classification system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	responseFormat := openai.ChatCompletionResponseFormat{
		Type: "json",
	}
	req.ResponseFormat = &responseFormat

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	return parseVerdict(resp.Choices[0].Message.Content)
}

// parseVerdict extracts the JSON verdict from the model's response text
func parseVerdict(responseText string) (*core.ClassificationResult, error) {
	var verdict verdictResponse
	if err := json.Unmarshal([]byte(responseText), &verdict); err != nil {
		jsonStart := strings.Index(responseText, "{")
		jsonEnd := strings.LastIndex(responseText, "}")
		if jsonStart < 0 || jsonEnd <= jsonStart {
			return nil, fmt.Errorf("failed to extract JSON from model response: %w", err)
		}
		if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &verdict); err != nil {
			return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
		}
	}

	label := core.Label(strings.ToLower(strings.TrimSpace(verdict.Label)))
	if label != core.LabelSpam && label != core.LabelHam {
		return nil, fmt.Errorf("model returned unknown label %q", verdict.Label)
	}

	return &core.ClassificationResult{
		Label:      label,
		Confidence: verdict.Confidence,
		Strategy:   core.StrategyModel,
		Reason:     verdict.Reason,
	}, nil
}
