package stun

import "time"

// Config collects the engine's tunable defaults. Every long-lived
// component takes a *Config (built via DefaultConfig and functional
// Options) instead of reading package-level variables.
type Config struct {
	// MaxMessageSize bounds a single outbound message; Send fails
	// locally with ErrTooLarge above this size.
	MaxMessageSize int

	// InitialRTO is the RTO a peer starts at before any retransmission
	// has happened.
	InitialRTO time.Duration
	// RTOCacheDuration is how long a peer's learned RTO survives once
	// ExpireRtoCache is scheduled.
	RTOCacheDuration time.Duration
	// Rc is the retransmission count used to derive RequestTimeout.
	Rc int
	// Rm is the final-interval multiplier used to derive RequestTimeout.
	Rm int
	// MinTransactionInterval paces consecutive requests to the same
	// peer; defaults to InitialRTO.
	MinTransactionInterval time.Duration
	// MaxOutstandingTransactions caps concurrent in-flight requests per
	// peer.
	MaxOutstandingTransactions int
	// RequestTimeout is the channel's authoritative deadline on a
	// client-side transaction.
	RequestTimeout time.Duration
}

// DefaultConfig returns the RFC 5389 §7.2.1-derived defaults.
func DefaultConfig() *Config {
	c := &Config{
		MaxMessageSize:             DefaultMaxMessageSize,
		InitialRTO:                 DefaultInitialRTO,
		RTOCacheDuration:           DefaultRTOCacheDuration,
		Rc:                         DefaultRc,
		Rm:                         DefaultRm,
		MaxOutstandingTransactions: DefaultMaxOutstandingTransactions,
	}
	c.MinTransactionInterval = c.InitialRTO
	c.RequestTimeout = RequestTimeout(c.InitialRTO, c.Rc, c.Rm)
	return c
}

// Option mutates a Config at construction time, composed in order by
// Apply.
type Option func(*Config)

// Apply runs every option against c in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithMaxMessageSize overrides MaxMessageSize.
func WithMaxMessageSize(n int) Option {
	return func(c *Config) { c.MaxMessageSize = n }
}

// WithInitialRTO overrides InitialRTO. It does not recompute
// RequestTimeout or MinTransactionInterval; combine with WithRequestTimeout
// / WithMinTransactionInterval as needed.
func WithInitialRTO(d time.Duration) Option {
	return func(c *Config) { c.InitialRTO = d }
}

// WithRTOCacheDuration overrides RTOCacheDuration.
func WithRTOCacheDuration(d time.Duration) Option {
	return func(c *Config) { c.RTOCacheDuration = d }
}

// WithRetransmissionLimits overrides Rc and Rm together and recomputes
// RequestTimeout from the config's current InitialRTO.
func WithRetransmissionLimits(rc, rm int) Option {
	return func(c *Config) {
		c.Rc, c.Rm = rc, rm
		c.RequestTimeout = RequestTimeout(c.InitialRTO, rc, rm)
	}
}

// WithMinTransactionInterval overrides MinTransactionInterval.
func WithMinTransactionInterval(d time.Duration) Option {
	return func(c *Config) { c.MinTransactionInterval = d }
}

// WithMaxOutstandingTransactions overrides MaxOutstandingTransactions.
func WithMaxOutstandingTransactions(n int) Option {
	return func(c *Config) { c.MaxOutstandingTransactions = n }
}

// WithRequestTimeout overrides RequestTimeout directly, bypassing the
// Rc/Rm derivation (used by tests that want a short, fixed deadline).
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) { c.RequestTimeout = d }
}
