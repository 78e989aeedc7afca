package store

import "time"

// Config holds configuration for the stores.
type Config struct {
	// Table is the DynamoDB table holding every document.
	// Default: "conference_entities"
	Table string

	// KindIndex is the GSI used for kind and ancestor queries.
	// Default: "kind-index"
	KindIndex string

	// NumShards is the number of partitions each kind is spread across in
	// the kind index. Higher values raise write throughput for a kind at the
	// cost of one parallel query per shard.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int

	// MaxAttempts bounds how many times a conflicting transaction is run
	// before ErrTransactionExhausted is returned.
	// Default: 5
	MaxAttempts int

	// RetryBaseDelay is the backoff before the second attempt; it doubles on
	// every further attempt and is jittered.
	// Default: 10ms
	RetryBaseDelay time.Duration

	// Observer, if set, is told about every transaction attempt.
	Observer TxObserver
}

// TxObserver receives transaction lifecycle events, typically to feed
// metrics.
type TxObserver interface {
	TxAttempt()
	TxConflict()
	TxExhausted()
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		Table:          "conference_entities",
		KindIndex:      "kind-index",
		NumShards:      1,
		MaxAttempts:    5,
		RetryBaseDelay: 10 * time.Millisecond,
	}
}

// Validate clamps config values into acceptable bounds.
func (c *Config) Validate() {
	if c.Table == "" {
		c.Table = "conference_entities"
	}
	if c.KindIndex == "" {
		c.KindIndex = "kind-index"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
}
