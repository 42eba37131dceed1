package simulate

import (
	"fmt"
	"runtime"
	"time"
)

// Default configuration constants.
const (
	defaultCandidates = 20
	defaultMembers    = 5
	defaultCoverage   = 0.8
	defaultTopN       = 100
	defaultTimeout    = 10 * time.Second
	defaultWait       = 30 * time.Second
	workerMultiplier  = 2
)

// Config holds configuration for one simulated party.
type Config struct {
	BaseURL    string        // Base URL of a running service; empty ranks locally only
	Candidates int           // Number of candidates in the party
	Members    int           // Number of swiping members
	Coverage   float64       // Probability that a member swipes a given candidate
	Seed       uint64        // Generator seed; 0 picks a random one
	Policy     string        // Aggregation policy used for the local ranking
	TopN       int           // Ranking entries fetched from the service
	Workers    int           // Concurrent swipe submitters
	Timeout    time.Duration // HTTP request timeout
	Wait       time.Duration // How long to wait for the service to publish a ranking
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Candidates: defaultCandidates,
		Members:    defaultMembers,
		Coverage:   defaultCoverage,
		Policy:     "mean",
		TopN:       defaultTopN,
		Workers:    runtime.NumCPU() * workerMultiplier,
		Timeout:    defaultTimeout,
		Wait:       defaultWait,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.Candidates < 0:
		return fmt.Errorf("%w: candidates must be >= 0", ErrInvalidConfig)
	case c.Members < 0:
		return fmt.Errorf("%w: members must be >= 0", ErrInvalidConfig)
	case c.Coverage < 0 || c.Coverage > 1:
		return fmt.Errorf("%w: coverage must be within [0,1]", ErrInvalidConfig)
	case c.BaseURL != "" && c.TopN < 1:
		return fmt.Errorf("%w: top must be > 0", ErrInvalidConfig)
	case c.BaseURL != "" && c.Workers < 1:
		return fmt.Errorf("%w: workers must be > 0", ErrInvalidConfig)
	}
	return nil
}
