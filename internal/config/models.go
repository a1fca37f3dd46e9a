package config

// ModelConfig represents the configuration for the model provider
type ModelConfig struct {
	Provider string
}

// SMTPConfig represents the inbound SMTP listener configuration
type SMTPConfig struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int
	MaxRecipients   int
}

// FeedConfig represents the observer feed listener configuration
type FeedConfig struct {
	ListenAddress string
}

// StatsConfig represents the aggregator configuration
type StatsConfig struct {
	RecentSize int
}

// HubConfig represents the broadcast hub configuration
type HubConfig struct {
	QueueSize           int
	MaxConsecutiveDrops int
}

// RulesConfig represents the rule engine configuration
type RulesConfig struct {
	TriggerWords            []string
	TriggerWordWeight       float64
	LinkWeightSingle        float64
	LinkWeightMany          float64
	ExclamationWeight       float64
	UppercaseRatioThreshold float64
	UppercaseWeight         float64
	SuspiciousTLDs          []string
	SuspiciousSenderWeight  float64
	SpamThreshold           float64
}

// SpamConfig represents the classification configuration
type SpamConfig struct {
	WhitelistedDomains     []string
	MaxConcurrentInference int
}

// CacheConfig represents the verdict cache configuration
type CacheConfig struct {
	Type       string
	Enabled    bool
	SQLitePath string
	MySQLDSN   string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetModel returns the model provider configuration
func (c *Config) GetModel() ModelConfig {
	return ModelConfig{
		Provider: c.GetString("model.provider"),
	}
}

// GetSMTP returns the SMTP listener configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		ListenAddress:   c.GetString("smtp.listen_address"),
		Domain:          c.GetString("smtp.domain"),
		MaxMessageBytes: c.GetInt("smtp.max_message_bytes"),
		MaxRecipients:   c.GetInt("smtp.max_recipients"),
	}
}

// GetFeed returns the observer feed configuration
func (c *Config) GetFeed() FeedConfig {
	return FeedConfig{
		ListenAddress: c.GetString("feed.listen_address"),
	}
}

// GetStats returns the aggregator configuration
func (c *Config) GetStats() StatsConfig {
	return StatsConfig{
		RecentSize: c.GetInt("stats.recent_size"),
	}
}

// GetHub returns the broadcast hub configuration
func (c *Config) GetHub() HubConfig {
	return HubConfig{
		QueueSize:           c.GetInt("hub.queue_size"),
		MaxConsecutiveDrops: c.GetInt("hub.max_consecutive_drops"),
	}
}

// GetRules returns the rule engine configuration
func (c *Config) GetRules() RulesConfig {
	return RulesConfig{
		TriggerWords:            c.GetStringSlice("rules.trigger_words"),
		TriggerWordWeight:       c.GetFloat64("rules.trigger_word_weight"),
		LinkWeightSingle:        c.GetFloat64("rules.link_weight_single"),
		LinkWeightMany:          c.GetFloat64("rules.link_weight_many"),
		ExclamationWeight:       c.GetFloat64("rules.exclamation_weight"),
		UppercaseRatioThreshold: c.GetFloat64("rules.uppercase_ratio_threshold"),
		UppercaseWeight:         c.GetFloat64("rules.uppercase_weight"),
		SuspiciousTLDs:          c.GetStringSlice("rules.suspicious_tlds"),
		SuspiciousSenderWeight:  c.GetFloat64("rules.suspicious_sender_weight"),
		SpamThreshold:           c.GetFloat64("rules.spam_threshold"),
	}
}

// GetSpam returns the classification configuration
func (c *Config) GetSpam() SpamConfig {
	return SpamConfig{
		WhitelistedDomains:     c.GetStringSlice("spam.whitelisted_domains"),
		MaxConcurrentInference: c.GetInt("spam.max_concurrent_inference"),
	}
}

// GetCache returns the verdict cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:       c.GetString("cache.type"),
		Enabled:    c.GetBool("cache.enabled"),
		SQLitePath: c.GetString("cache.sqlite_path"),
		MySQLDSN:   c.GetString("cache.mysql_dsn"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
