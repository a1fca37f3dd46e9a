package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikey/mailflow-monitor/internal/config"
	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/mikey/mailflow-monitor/internal/factory"
	"github.com/mikey/mailflow-monitor/internal/logging"
	"github.com/mikey/mailflow-monitor/internal/mailparse"
	"github.com/mikey/mailflow-monitor/internal/rules"
	"github.com/mikey/mailflow-monitor/internal/whitelist"
	"go.uber.org/zap"
)

var (
	// Model provider flags
	provider    = flag.String("provider", "none", "Model provider (none, bedrock, gemini, openai)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for model response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for model generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for model generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum message body size to send to the model")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Classification flags
	whitelistDomains = flag.String("whitelist", "", "Comma-separated list of whitelisted domains")

	// Input flags
	inputFile  = flag.String("file", "", "Input message file (use stdin if not specified)")
	sender     = flag.String("sender", "", "Envelope sender (falls back to the From header)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	// Parse whitelisted domains
	var whitelistedDomains []string
	if *whitelistDomains != "" {
		whitelistedDomains = strings.Split(*whitelistDomains, ",")
		for i, domain := range whitelistedDomains {
			whitelistedDomains[i] = strings.TrimSpace(domain)
		}
	} else {
		whitelistedDomains = cfg.GetSpam().WhitelistedDomains
	}

	// Read message from file or stdin
	var reader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		reader = file
		logger.Info("Reading message from file", zap.String("file", *inputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading message from stdin")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		logger.Fatal("Failed to read message", zap.Error(err))
	}

	subject, body, err := mailparse.Parse(data)
	if err != nil {
		logger.Fatal("Failed to parse message", zap.Error(err))
	}

	event := &core.MessageEvent{
		Sender:     *sender,
		Recipients: []string{"undisclosed-recipients"},
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}
	if event.Sender == "" {
		event.Sender = extractFromHeader(data)
	}

	classifier := buildClassifier(cfg, logger, whitelistedDomains)

	// Print message summary
	fmt.Printf("\n=== Message Summary ===\n")
	fmt.Printf("Sender: %s\n", event.Sender)
	fmt.Printf("Subject: %s\n", event.Subject)
	fmt.Printf("Body length: %d bytes\n", len(event.Body))

	fmt.Printf("\n=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetString("model.provider"))

	startTime := time.Now()
	result := classifier.Classify(context.Background(), event)
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Label: %s\n", result.Label)
	fmt.Printf("Confidence: %.4f\n", result.Confidence)
	fmt.Printf("Strategy: %s\n", result.Strategy)
	fmt.Printf("Reason: %s\n", result.Reason)
	fmt.Printf("Processing time: %v\n", duration)
}

// buildClassifier assembles a classifier from configuration, without the
// verdict cache (one-shot runs have nothing to warm)
func buildClassifier(cfg *config.Config, logger *zap.Logger, whitelistedDomains []string) *core.Classifier {
	textProcessorFactory := factory.NewTextProcessorFactory(logger)
	modelFactory := factory.NewModelFactory(cfg, logger, textProcessorFactory.CreateTextProcessor())
	modelClient := modelFactory.CreateModelClient()

	rulesCfg := cfg.GetRules()
	engine := rules.NewEngine(rules.Config{
		TriggerWords:            rulesCfg.TriggerWords,
		TriggerWordWeight:       rulesCfg.TriggerWordWeight,
		LinkWeightSingle:        rulesCfg.LinkWeightSingle,
		LinkWeightMany:          rulesCfg.LinkWeightMany,
		ExclamationWeight:       rulesCfg.ExclamationWeight,
		UppercaseRatioThreshold: rulesCfg.UppercaseRatioThreshold,
		UppercaseWeight:         rulesCfg.UppercaseWeight,
		SuspiciousTLDs:          rulesCfg.SuspiciousTLDs,
		SuspiciousSenderWeight:  rulesCfg.SuspiciousSenderWeight,
		SpamThreshold:           rulesCfg.SpamThreshold,
	})

	inferenceTimeout, err := cfg.GetDuration("spam.inference_timeout")
	if err != nil {
		inferenceTimeout = 10 * time.Second
	}

	return core.NewClassifier(
		modelClient,
		engine,
		whitelist.NewChecker(whitelistedDomains, logger),
		nil,
		logger,
		false,
		0,
		cfg.GetSpam().MaxConcurrentInference,
		inferenceTimeout,
	)
}

// extractFromHeader pulls the From header out of the raw message as a
// best-effort envelope sender substitute
func extractFromHeader(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "from:") {
			value := strings.TrimSpace(line[len("from:"):])
			if start := strings.Index(value, "<"); start >= 0 {
				if end := strings.Index(value[start:], ">"); end > 0 {
					return value[start+1 : start+end]
				}
			}
			return value
		}
	}
	return ""
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	// Set model provider
	v.Set("model.provider", *provider)

	// Set provider-specific configuration
	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	return config.NewFromViper(v)
}
