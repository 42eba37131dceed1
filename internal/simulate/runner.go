package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/partyrank/internal/domain/aggregate"
	"github.com/okian/partyrank/internal/domain/consensus"
	"github.com/okian/partyrank/internal/domain/types"
	"github.com/okian/partyrank/pkg/logger"
)

const pollInterval = 50 * time.Millisecond

// Report summarizes one simulation run.
type Report struct {
	Party           Party
	Local           consensus.Result
	Remote          []types.Entry
	SwipesSubmitted int
	SwipesDuplicate int
	Duration        time.Duration
}

// RankLocal ranks the party in-process with the given aggregation policy.
// Like the service, it only counts members that swiped.
func RankLocal(party Party, policy string) (consensus.Result, error) {
	agg, err := aggregate.New(policy)
	if err != nil {
		return consensus.Result{}, err
	}
	p := consensus.New(consensus.WithAggregator(agg))
	return p.Run(party.Candidates, consensus.GroupByMember(party.Swipes))
}

// Run generates a party and ranks it locally. When cfg.BaseURL is set the
// party is also submitted to the service and the service's ranking is
// verified against the local one.
func Run(ctx context.Context, cfg Config) (Report, error) {
	start := time.Now()
	log := logger.Get().Named("simulate")

	party, err := Generate(cfg)
	if err != nil {
		return Report{}, fmt.Errorf("generate party: %w", err)
	}
	log.Info(ctx, "generated party",
		logger.String("party_id", party.ID),
		logger.Any("seed", party.Seed),
		logger.Int("candidates", len(party.Candidates)),
		logger.Int("members", len(party.Members)),
		logger.Int("swipes", len(party.Swipes)),
	)

	local, err := RankLocal(party, cfg.Policy)
	if err != nil {
		return Report{}, fmt.Errorf("rank locally: %w", err)
	}
	report := Report{Party: party, Local: local}

	if cfg.BaseURL != "" {
		if err := runRemote(ctx, cfg, &report, log); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	log.Info(ctx, "simulation completed", logger.Duration("duration", report.Duration))
	return report, nil
}

func runRemote(ctx context.Context, cfg Config, report *Report, log logger.Logger) error {
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	party := report.Party

	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}
	if err := client.PutCandidates(ctx, party.ID, party.Candidates); err != nil {
		return fmt.Errorf("register candidates: %w", err)
	}

	// Each member's swipes go through one goroutine so their order is kept.
	byMember := consensus.GroupByMember(party.Swipes)
	var submitted, duplicate atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, member := range party.Members {
		swipes := byMember[member]
		g.Go(func() error {
			for _, sw := range swipes {
				dup, err := client.PostSwipe(gctx, party.ID, sw)
				if err != nil {
					return fmt.Errorf("submit swipe: %w", err)
				}
				submitted.Add(1)
				if dup {
					duplicate.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	report.SwipesSubmitted = int(submitted.Load())
	report.SwipesDuplicate = int(duplicate.Load())
	log.Info(ctx, "swipes submitted",
		logger.Int("submitted", report.SwipesSubmitted),
		logger.Int("duplicate", report.SwipesDuplicate),
	)

	if err := client.Complete(ctx, party.ID); err != nil {
		return fmt.Errorf("complete party: %w", err)
	}
	remote, err := waitForRanking(ctx, client, party.ID, cfg.TopN, cfg.Wait)
	if err != nil {
		return err
	}
	report.Remote = remote

	if err := Verify(report.Local.Ranking, remote); err != nil {
		return err
	}
	log.Info(ctx, "service ranking verified", logger.Int("entries", len(remote)))
	return nil
}

func waitForRanking(ctx context.Context, client *Client, partyID string, limit int, wait time.Duration) ([]types.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		entries, err := client.Ranking(ctx, partyID, limit)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, ErrNotReady) {
			return nil, fmt.Errorf("fetch ranking: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch ranking: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
