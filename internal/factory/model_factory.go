package factory

import (
	"fmt"

	"github.com/mikey/mailflow-monitor/internal/adapters/bedrock"
	"github.com/mikey/mailflow-monitor/internal/adapters/gemini"
	"github.com/mikey/mailflow-monitor/internal/adapters/openai"
	"github.com/mikey/mailflow-monitor/internal/config"
	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/mikey/mailflow-monitor/internal/utils"
	"go.uber.org/zap"
)

// ModelFactory creates model clients for the primary classification strategy
type ModelFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewModelFactory creates a new model factory
func NewModelFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ModelFactory {
	return &ModelFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateModelClient creates a model client based on the configuration.
// A failure to construct the client never aborts startup: the pipeline
// runs fallback-only until the configuration is fixed. Provider "none"
// is fallback-only by intent.
func (f *ModelFactory) CreateModelClient() core.ModelClient {
	modelConfig := f.cfg.GetModel()

	client, err := f.createForProvider(modelConfig.Provider)
	if err != nil {
		f.logger.Warn("Model strategy unavailable, running with rule-based fallback only",
			zap.String("provider", modelConfig.Provider),
			zap.Error(err))
		return nil
	}
	if client != nil {
		f.logger.Info("Model strategy initialized",
			zap.String("provider", modelConfig.Provider))
	}
	return client
}

func (f *ModelFactory) createForProvider(provider string) (core.ModelClient, error) {
	switch provider {
	case "none", "":
		return nil, nil
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClient()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClient()
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClient()
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", provider)
	}
}
