package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/mikey/mailflow-monitor/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ModelClient is an implementation of the core.ModelClient interface using
// Google Gemini
type ModelClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
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

// NewModelClient creates a new Gemini model client
func NewModelClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*ModelClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &ModelClient{
		client:        client,
		model:         model,
		modelName:     modelName,
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
	}, nil
}

// Close closes the Gemini client
func (c *ModelClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyMessage classifies a message using the configured Gemini model
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

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	return parseVerdict(responseText)
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
