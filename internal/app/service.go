// Package service wires the consensus core to storage, the rank job queue
// and the worker pool, and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	rankqueue "github.com/okian/partyrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/partyrank/internal/adapters/mq/worker"
	"github.com/okian/partyrank/internal/adapters/repository"
	"github.com/okian/partyrank/internal/domain/aggregate"
	"github.com/okian/partyrank/internal/domain/consensus"
	"github.com/okian/partyrank/internal/domain/dedupe"
	"github.com/okian/partyrank/internal/domain/model"
	"github.com/okian/partyrank/internal/domain/scoring"
	"github.com/okian/partyrank/internal/domain/types"
	"github.com/okian/partyrank/pkg/logger"
	"github.com/okian/partyrank/pkg/metrics"
)

// Service implements the API dependencies for party ranking.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.PartyStore
	index    *repository.TreapIndex
	deduper  dedupe.Deduper
	queue    rankqueue.Queue
	pipeline *consensus.Pipeline
	pool     *workerpool.Pool

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	baseRating       float64
	kFactor          float64
	policy           string
	scoreConcurrency int
	storeDriver      string
	sqlitePath       string
	injectedStore    repository.PartyStore

	// State
	started    bool
	stopping   bool
	partyLocks sync.Map
	cancel  context.CancelFunc
	now     func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of rank workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending rank jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the swipe dedupe set; 0 leaves it unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBaseRating sets the rating every candidate starts from.
func WithBaseRating(r float64) Option {
	return func(s *Service) { s.baseRating = r }
}

// WithKFactor sets the swipe update magnitude.
func WithKFactor(k float64) Option {
	return func(s *Service) { s.kFactor = k }
}

// WithAggregationPolicy selects how member ratings are combined.
func WithAggregationPolicy(policy string) Option {
	return func(s *Service) { s.policy = policy }
}

// WithScoreConcurrency bounds how many members are scored at once.
func WithScoreConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoreConcurrency = n
		}
	}
}

// WithSQLite persists parties in the SQLite database at path.
func WithSQLite(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.storeDriver = "sqlite"
			s.sqlitePath = path
		}
	}
}

// WithStore uses an already opened store. The service closes it on Stop.
func WithStore(store repository.PartyStore) Option {
	return func(s *Service) {
		if store != nil {
			s.injectedStore = store
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        1024,
		dedupeSize:       100_000,
		baseRating:       scoring.BaseRating,
		kFactor:          scoring.KFactor,
		policy:           string(aggregate.PolicyMean),
		scoreConcurrency: runtime.GOMAXPROCS(0),
		storeDriver:      "memory",
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPipeline builds the consensus pipeline described by the options
// without starting anything.
func NewPipeline(opts ...Option) (*consensus.Pipeline, error) {
	return New(opts...).buildPipeline()
}

func (s *Service) buildPipeline() (*consensus.Pipeline, error) {
	agg, err := aggregate.New(s.policy)
	if err != nil {
		return nil, err
	}
	scorer := scoring.NewMemberScorer(
		scoring.WithBaseRating(s.baseRating),
		scoring.WithKFactor(s.kFactor),
	)
	return consensus.New(
		consensus.WithScorer(scorer),
		consensus.WithAggregator(agg),
		consensus.WithConcurrency(s.scoreConcurrency),
	), nil
}

func (s *Service) openStore(ctx context.Context) (repository.PartyStore, error) {
	if s.injectedStore != nil {
		return s.injectedStore, nil
	}
	if s.storeDriver == "sqlite" {
		return repository.NewSQLite(ctx, s.sqlitePath)
	}
	return repository.NewMemoryStore(), nil
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting party ranking service...")

	pipeline, err := s.buildPipeline()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	store, err := s.openStore(ctx)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pipeline = pipeline
	s.store = store
	s.index = repository.NewTreapIndex(runCtx)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = rankqueue.NewInMemoryQueue(rankqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "party ranking service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.String("policy", string(pipeline.Policy())),
		logger.String("store", s.storeDriver),
	)
	return nil
}

// Stop gracefully shuts down the service. In-flight rank jobs finish
// before the store is closed.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	pool := s.pool
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping party ranking service...")

	// Workers call back into the service, so the pool drains without the lock.
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	_ = s.index.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	s.started = false
	s.stopping = false
	s.logger.Info(ctx, "party ranking service stopped")
}

// partyLock serializes candidate replacement and recompute for one party.
func (s *Service) partyLock(partyID string) *sync.Mutex {
	l, _ := s.partyLocks.LoadOrStore(partyID, new(sync.Mutex))
	return l.(*sync.Mutex)
}

// components returns the running components or ErrNotStarted.
func (s *Service) components() (*runtimeParts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return &runtimeParts{
		store:    s.store,
		index:    s.index,
		deduper:  s.deduper,
		queue:    s.queue,
		pipeline: s.pipeline,
	}, nil
}

type runtimeParts struct {
	store    repository.PartyStore
	index    *repository.TreapIndex
	deduper  dedupe.Deduper
	queue    rankqueue.Queue
	pipeline *consensus.Pipeline
}

// RegisterCandidates replaces a party's candidate set, creating the party
// if needed. Any ranking computed for the previous set is dropped.
func (s *Service) RegisterCandidates(ctx context.Context, partyID string, candidates []model.Candidate) error {
	c, err := s.components()
	if err != nil {
		return err
	}
	if err := model.ValidateCandidates(candidates); err != nil {
		metrics.RecordValidationError("candidates")
		return err
	}
	l := s.partyLock(partyID)
	l.Lock()
	defer l.Unlock()

	if err := c.store.PutCandidates(ctx, partyID, candidates); err != nil {
		metrics.RecordErrorByComponent("repository", "put_candidates")
		return err
	}
	c.index.Remove(ctx, partyID)

	s.logger.Debug(ctx, "candidates registered",
		logger.String("party_id", partyID),
		logger.Int("candidates", len(candidates)),
	)
	return nil
}

// RecordSwipe appends a swipe to the party's log. A repeated swipe by the
// same member on the same candidate is reported as a duplicate and dropped.
func (s *Service) RecordSwipe(ctx context.Context, partyID string, sw model.Swipe) (types.SwipeResult, error) {
	c, err := s.components()
	if err != nil {
		return types.SwipeResult{}, err
	}
	if err := model.ValidateSwipe(&sw); err != nil {
		metrics.RecordValidationError("swipe")
		return types.SwipeResult{}, err
	}
	if sw.TS.IsZero() {
		sw.TS = s.now().UTC()
	}

	key := dedupe.Key(partyID, sw.MemberID, sw.CandidateID)
	if c.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordSwipeDuplicate()
		s.logger.Debug(ctx, "duplicate swipe dropped",
			logger.String("party_id", partyID),
			logger.String("member_id", sw.MemberID),
			logger.String("candidate_id", sw.CandidateID),
		)
		return types.SwipeResult{Duplicate: true}, nil
	}
	if err := c.store.AppendSwipe(ctx, partyID, sw); err != nil {
		c.deduper.Unrecord(ctx, key)
		return types.SwipeResult{}, err
	}
	metrics.RecordSwipeRecorded()
	return types.SwipeResult{}, nil
}

// Complete schedules an asynchronous consensus recompute for the party.
func (s *Service) Complete(ctx context.Context, partyID string) (model.RankJob, error) {
	c, err := s.components()
	if err != nil {
		return model.RankJob{}, err
	}
	if _, err := c.store.Party(ctx, partyID); err != nil {
		return model.RankJob{}, err
	}

	job := model.RankJob{
		JobID:      uuid.NewString(),
		PartyID:    partyID,
		EnqueuedAt: s.now().UTC(),
	}
	if err := c.queue.Enqueue(ctx, job); err != nil {
		if errors.Is(err, rankqueue.ErrFull) {
			return model.RankJob{}, fmt.Errorf("%w: %w", ErrBusy, err)
		}
		return model.RankJob{}, err
	}
	return job, nil
}

// Recompute loads the party, runs the consensus pipeline over every member's
// swipe log, stores the result and refreshes the ranking index.
func (s *Service) Recompute(ctx context.Context, partyID string) error {
	_, err := s.RecomputeResult(ctx, partyID)
	return err
}

// RecomputeResult is Recompute that also returns the pipeline result.
func (s *Service) RecomputeResult(ctx context.Context, partyID string) (consensus.Result, error) {
	c, err := s.components()
	if err != nil {
		return consensus.Result{}, err
	}

	res, err := s.recompute(ctx, c, partyID)
	if err != nil {
		metrics.RecordRecomputeError()
		if model.IsValidation(err) {
			metrics.RecordValidationError("party")
		}
		s.logger.Error(ctx, "recompute failed", logger.String("party_id", partyID), logger.Error(err))
		return consensus.Result{}, err
	}
	return res, nil
}

func (s *Service) recompute(ctx context.Context, c *runtimeParts, partyID string) (consensus.Result, error) {
	l := s.partyLock(partyID)
	l.Lock()
	defer l.Unlock()

	party, err := c.store.Party(ctx, partyID)
	if err != nil {
		return consensus.Result{}, err
	}
	swipes, err := c.store.Swipes(ctx, partyID)
	if err != nil {
		return consensus.Result{}, err
	}

	res, err := c.pipeline.Run(party.Candidates, consensus.GroupByMember(swipes))
	if err != nil {
		return consensus.Result{}, fmt.Errorf("party %q: %w", partyID, err)
	}
	metrics.RecordScoringLatency(float64(res.Stats.ScoringTime.Microseconds()) / 1000)
	metrics.RecordAggregationLatency(float64(res.Stats.AggregationTime.Microseconds()) / 1000)
	metrics.RecordSwipesIgnored(res.Stats.SwipesIgnored)

	if err := c.store.SaveConsensus(ctx, partyID, res.ByCandidateID, s.now()); err != nil {
		return consensus.Result{}, err
	}
	c.index.Replace(ctx, partyID, res.Ranking)
	metrics.RecordPartyRanked()

	s.logger.Info(ctx, "party ranked",
		logger.String("party_id", partyID),
		logger.Int("members", res.Stats.Members),
		logger.Int("candidates", res.Stats.Candidates),
		logger.Int("swipes_applied", res.Stats.SwipesApplied),
		logger.Int("swipes_ignored", res.Stats.SwipesIgnored),
	)
	return res, nil
}

// RankStateless computes a consensus for the given candidates and swipes
// without touching any stored party. Members are taken from the swipes.
func (s *Service) RankStateless(ctx context.Context, candidates []model.Candidate, swipes []model.Swipe) (consensus.Result, error) {
	c, err := s.components()
	if err != nil {
		return consensus.Result{}, err
	}
	for i := range swipes {
		if err := model.ValidateSwipe(&swipes[i]); err != nil {
			metrics.RecordValidationError("swipe")
			return consensus.Result{}, fmt.Errorf("swipe %d: %w", i, err)
		}
	}
	res, err := c.pipeline.Run(candidates, consensus.GroupByMember(swipes))
	if err != nil {
		if model.IsValidation(err) {
			metrics.RecordValidationError("candidates")
		}
		return consensus.Result{}, err
	}
	metrics.RecordSwipesIgnored(res.Stats.SwipesIgnored)
	s.logger.Debug(ctx, "stateless rank",
		logger.Int("members", res.Stats.Members),
		logger.Int("candidates", res.Stats.Candidates),
	)
	return res, nil
}

// TopN returns up to n entries of the party's latest ranking.
func (s *Service) TopN(ctx context.Context, partyID string, n int) ([]types.Entry, error) {
	c, err := s.components()
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, repository.ErrInvalidLimit
	}
	if err := s.ensureIndexed(ctx, c, partyID); err != nil {
		return nil, err
	}
	return c.index.TopN(ctx, partyID, n)
}

// Rank returns one title's entry in the party's latest ranking.
func (s *Service) Rank(ctx context.Context, partyID, title string) (types.Entry, error) {
	c, err := s.components()
	if err != nil {
		return types.Entry{}, err
	}
	if err := s.ensureIndexed(ctx, c, partyID); err != nil {
		return types.Entry{}, err
	}
	return c.index.Rank(ctx, partyID, title)
}

// ensureIndexed loads a stored consensus into the index when the index does
// not hold one, e.g. after a restart on a persistent store.
func (s *Service) ensureIndexed(ctx context.Context, c *runtimeParts, partyID string) error {
	if c.index.Has(ctx, partyID) {
		return nil
	}
	l := s.partyLock(partyID)
	l.Lock()
	defer l.Unlock()
	if c.index.Has(ctx, partyID) {
		return nil
	}

	stored, err := c.store.Consensus(ctx, partyID)
	if err != nil {
		return err
	}
	party, err := c.store.Party(ctx, partyID)
	if err != nil {
		return err
	}

	byTitle := make(model.Consensus, len(stored.Ratings))
	idByTitle := make(map[string]string, len(party.Candidates))
	for _, cand := range party.Candidates {
		if r, ok := stored.Ratings[cand.ID]; ok {
			byTitle[cand.Title] = r
			idByTitle[cand.Title] = cand.ID
		}
	}
	c.index.Replace(ctx, partyID, aggregate.Rank(byTitle, idByTitle))
	return nil
}

// Party returns a party's registered state.
func (s *Service) Party(ctx context.Context, partyID string) (repository.Party, error) {
	c, err := s.components()
	if err != nil {
		return repository.Party{}, err
	}
	return c.store.Party(ctx, partyID)
}

// DeleteParty removes a party with its swipes, ranking and dedupe state.
func (s *Service) DeleteParty(ctx context.Context, partyID string) error {
	c, err := s.components()
	if err != nil {
		return err
	}
	if err := c.store.DeleteParty(ctx, partyID); err != nil {
		return err
	}
	c.index.Remove(ctx, partyID)
	c.deduper.ForgetParty(ctx, partyID)
	s.partyLocks.Delete(partyID)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"dedupeSize":        s.dedupeSize,
		"aggregationPolicy": s.policy,
		"storeDriver":       s.storeDriver,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["rankedParties"] = s.index.Count(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		if n, err := s.store.Count(ctx); err == nil {
			stats["parties"] = n
		}
	}
	return stats
}
