// Package config defines service configuration and how it is loaded.
package config

import (
	"runtime"

	"github.com/okian/partyrank/internal/domain/aggregate"
	"github.com/okian/partyrank/internal/domain/scoring"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory rank job queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of rank workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// DedupeSize bounds the swipe dedupe set; 0 means unbounded.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// MaxRankingLimit caps GET /parties/{id}/ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit" validate:"gt=0"`

	// BaseRating is every candidate's rating before any swipe.
	BaseRating float64 `koanf:"base_rating"`

	// KFactor scales each swipe's rating delta.
	KFactor float64 `koanf:"k_factor" validate:"gt=0"`

	// AggregationPolicy combines member ratings: mean or median.
	AggregationPolicy string `koanf:"aggregation_policy" validate:"oneof=mean median"`

	// ScoreConcurrency bounds how many members are scored at once.
	ScoreConcurrency int `koanf:"score_concurrency" validate:"gt=0"`

	// StoreDriver selects party persistence: memory or sqlite.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory sqlite"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=StoreDriver sqlite"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         1024,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        100_000,
		MaxRankingLimit:   100,
		BaseRating:        scoring.BaseRating,
		KFactor:           scoring.KFactor,
		AggregationPolicy: string(aggregate.PolicyMean),
		ScoreConcurrency:  runtime.GOMAXPROCS(0),
		StoreDriver:       StoreMemory,
		SQLitePath:        "partyrank.db",
	}
}
