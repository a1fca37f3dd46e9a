package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "none", cfg.GetString("model.provider"))
	assert.Equal(t, "0.0.0.0:1025", cfg.GetString("smtp.listen_address"))
	assert.Equal(t, "0.0.0.0:8000", cfg.GetString("feed.listen_address"))
	assert.Equal(t, 100, cfg.GetInt("stats.recent_size"))
	assert.Equal(t, 8, cfg.GetInt("hub.queue_size"))
	assert.Equal(t, 5, cfg.GetInt("hub.max_consecutive_drops"))
	assert.Equal(t, "memory", cfg.GetString("cache.type"))
	assert.True(t, cfg.GetBool("cache.enabled"))

	timeout, err := cfg.GetDuration("spam.inference_timeout")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)
}

func TestGetRulesCarriesDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	rules := cfg.GetRules()
	assert.Contains(t, rules.TriggerWords, "winner")
	assert.Equal(t, 0.25, rules.TriggerWordWeight)
	assert.Equal(t, 0.5, rules.SpamThreshold)
	assert.Contains(t, rules.SuspiciousTLDs, ".xyz")
}

func TestOverridesWinOverDefaults(t *testing.T) {
	v := NewEmptyViper()
	v.Set("smtp.listen_address", "127.0.0.1:2525")
	v.Set("stats.recent_size", 25)
	cfg := NewFromViper(v)

	assert.Equal(t, "127.0.0.1:2525", cfg.GetString("smtp.listen_address"))
	assert.Equal(t, 25, cfg.GetInt("stats.recent_size"))

	smtp := cfg.GetSMTP()
	assert.Equal(t, "127.0.0.1:2525", smtp.ListenAddress)
}

func TestTypedSections(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	feed := cfg.GetFeed()
	assert.Equal(t, "0.0.0.0:8000", feed.ListenAddress)

	hub := cfg.GetHub()
	assert.Equal(t, 8, hub.QueueSize)
	assert.Equal(t, 5, hub.MaxConsecutiveDrops)

	bedrock := cfg.GetBedrock()
	assert.Equal(t, "us-east-1", bedrock.Region)
	assert.Equal(t, "anthropic.claude-v2", bedrock.ModelID)
}
