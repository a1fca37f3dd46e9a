package core

import (
	"strings"
	"time"
)

// Label is the binary classification outcome
type Label string

const (
	LabelSpam Label = "spam"
	LabelHam  Label = "ham"
)

// Strategy identifies which classification strategy produced a result
type Strategy string

const (
	StrategyModel     Strategy = "model"
	StrategyRuleBased Strategy = "rule-based"
)

// RawInboundMessage is a message as handed over by the mail transport,
// before validation
type RawInboundMessage struct {
	Sender     string
	Recipients []string
	Data       []byte
	StatusCode int
}

// MessageEvent is the canonical record of one accepted inbound message.
// It is never mutated after construction.
type MessageEvent struct {
	Sender     string
	Recipients []string
	Subject    string
	Body       string
	ReceivedAt time.Time
	StatusCode int
}

// SenderDomain extracts the domain part of the sender address, lowercased.
// Malformed or missing domains map to the reserved "unknown" bucket.
func (e *MessageEvent) SenderDomain() string {
	return DomainOf(e.Sender)
}

// DomainOf returns the domain bucket for an address
func DomainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return "unknown"
	}
	domain := strings.ToLower(strings.TrimSpace(strings.TrimRight(addr[at+1:], "> ")))
	if domain == "" {
		return "unknown"
	}
	return domain
}

// ClassificationResult is the outcome of classifying one message
type ClassificationResult struct {
	Label      Label
	Confidence float64
	Strategy   Strategy
	Reason     string
}

// RecentEntry is one row of the recent-activity feed
type RecentEntry struct {
	Sender     string    `json:"sender"`
	Label      Label     `json:"label"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// StatsSnapshot is an immutable point-in-time copy of the aggregate
// statistics, safe to hand to observers without further synchronization
type StatsSnapshot struct {
	Total       uint64            `json:"total"`
	Spam        uint64            `json:"spam"`
	Ham         uint64            `json:"ham"`
	Rejected    uint64            `json:"rejected"`
	Fallback    uint64            `json:"fallback"`
	Domains     map[string]uint64 `json:"domains"`
	StatusCodes map[int]uint64    `json:"status_codes"`
	Recent      []RecentEntry     `json:"recent"`
}

// CachedVerdict is a per-sender classification verdict held by the verdict cache
type CachedVerdict struct {
	Sender     string
	Label      Label
	Confidence float64
	Strategy   Strategy
	LastSeen   time.Time
	ExpiresAt  time.Time
}
