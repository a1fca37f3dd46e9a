package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mailflow-monitor/internal/adapters/feed"
	"github.com/mikey/mailflow-monitor/internal/adapters/smtp"
	"github.com/mikey/mailflow-monitor/internal/config"
	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/mikey/mailflow-monitor/internal/factory"
	"github.com/mikey/mailflow-monitor/internal/logging"
	"github.com/mikey/mailflow-monitor/internal/rules"
	"github.com/mikey/mailflow-monitor/internal/utils"
	"github.com/mikey/mailflow-monitor/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewModelFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register model client (primary strategy; nil means fallback-only)
	if err := container.Provide(func(f *factory.ModelFactory) core.ModelClient {
		return f.CreateModelClient()
	}); err != nil {
		return nil, err
	}

	// Register verdict cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.VerdictCache, error) {
		return f.CreateVerdictCache()
	}); err != nil {
		return nil, err
	}

	// Register rule engine
	if err := container.Provide(func(cfg *config.Config) core.RuleEngine {
		rulesCfg := cfg.GetRules()
		return rules.NewEngine(rules.Config{
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
	}); err != nil {
		return nil, err
	}

	// Register whitelist checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		return whitelist.NewChecker(cfg.GetSpam().WhitelistedDomains, logger)
	}); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		model core.ModelClient,
		engine core.RuleEngine,
		wl *whitelist.Checker,
		verdictCache core.VerdictCache,
		cacheFactory *factory.CacheFactory,
	) (*core.Classifier, error) {
		cacheTTL, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		inferenceTimeout, err := cfg.GetDuration("spam.inference_timeout")
		if err != nil {
			return nil, err
		}
		return core.NewClassifier(
			model,
			engine,
			wl,
			verdictCache,
			logger,
			cacheFactory.IsCacheEnabled(),
			cacheTTL,
			cfg.GetSpam().MaxConcurrentInference,
			inferenceTimeout,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register stats aggregator
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.StatsAggregator {
		return core.NewStatsAggregator(cfg.GetStats().RecentSize, logger)
	}); err != nil {
		return nil, err
	}

	// Register broadcast hub
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.BroadcastHub {
		hubCfg := cfg.GetHub()
		return core.NewBroadcastHub(hubCfg.QueueSize, hubCfg.MaxConsecutiveDrops, logger)
	}); err != nil {
		return nil, err
	}

	// Register ingest service
	if err := container.Provide(core.NewIngestService); err != nil {
		return nil, err
	}

	// Register SMTP listener
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		ingest *core.IngestService,
	) *smtp.Server {
		smtpCfg := cfg.GetSMTP()
		return smtp.NewServer(
			ingest,
			logger,
			smtpCfg.ListenAddress,
			smtpCfg.Domain,
			smtpCfg.MaxMessageBytes,
			smtpCfg.MaxRecipients,
		)
	}); err != nil {
		return nil, err
	}

	// Register observer feed listener
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		hub *core.BroadcastHub,
		stats *core.StatsAggregator,
	) (*feed.Server, error) {
		writeTimeout, err := cfg.GetDuration("feed.write_timeout")
		if err != nil {
			writeTimeout = 5 * time.Second
		}
		return feed.NewServer(hub, stats, logger, cfg.GetFeed().ListenAddress, writeTimeout), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
