package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/partyrank/internal/adapters/mq/worker"
	"github.com/okian/partyrank/internal/domain/model"
	logging "github.com/okian/partyrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs      chan model.RankJob
	closeOnce sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan model.RankJob, 16)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.RankJob { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.jobs) })
	return nil
}

type mockRanker struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error
	called chan string
}

func newMockRanker() *mockRanker {
	return &mockRanker{errs: map[string]error{}, called: make(chan string, 64)}
}

func (r *mockRanker) Recompute(_ context.Context, partyID string) error {
	r.mu.Lock()
	r.calls = append(r.calls, partyID)
	err := r.errs[partyID]
	r.mu.Unlock()
	r.called <- partyID
	return err
}

func (r *mockRanker) setError(partyID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[partyID] = err
}

func (r *mockRanker) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitCall(r *mockRanker) (string, bool) {
	select {
	case id := <-r.called:
		return id, true
	case <-time.After(2 * time.Second):
		return "", false
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		ranker := newMockRanker()
		w := worker.NewInMemoryWorker(q, ranker, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		convey.Reset(cancel)

		convey.Convey("When a rank job arrives", func() {
			q.jobs <- model.RankJob{JobID: "j1", PartyID: "p1", EnqueuedAt: time.Now()}
			id, ok := waitCall(ranker)

			convey.Convey("Then the party should be recomputed", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(id, convey.ShouldEqual, "p1")
			})
		})

		convey.Convey("When a recompute fails", func() {
			ranker.setError("bad", errors.New("boom"))
			q.jobs <- model.RankJob{JobID: "j1", PartyID: "bad"}
			q.jobs <- model.RankJob{JobID: "j2", PartyID: "good"}
			first, _ := waitCall(ranker)
			second, ok := waitCall(ranker)

			convey.Convey("Then the worker should keep going", func() {
				convey.So(first, convey.ShouldEqual, "bad")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(second, convey.ShouldEqual, "good")
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then Run should return", func() {
				convey.So(err, convey.ShouldBeNil)
				select {
				case <-w.Done():
				default:
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			convey.Convey("Then Run should return", func() {
				select {
				case <-w.Done():
				case <-time.After(2 * time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		ranker := newMockRanker()

		convey.Convey("When the worker count is not positive", func() {
			p := worker.NewPool(0, q, ranker)

			convey.Convey("Then it should default to at least one worker", func() {
				convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When jobs are spread across workers", func() {
			p := worker.NewPool(4, q, ranker)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			p.Start(ctx)

			for i := 0; i < 10; i++ {
				q.jobs <- model.RankJob{JobID: fmt.Sprint(i), PartyID: fmt.Sprintf("p%d", i)}
			}
			seen := map[string]bool{}
			for i := 0; i < 10; i++ {
				id, ok := waitCall(ranker)
				convey.So(ok, convey.ShouldBeTrue)
				seen[id] = true
			}
			err := p.Shutdown(context.Background())

			convey.Convey("Then every job should be processed once and the pool should stop", func() {
				convey.So(len(seen), convey.ShouldEqual, 10)
				convey.So(ranker.callCount(), convey.ShouldEqual, 10)
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}
