package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/partyrank/internal/app"
	"github.com/okian/partyrank/internal/adapters/repository"
	"github.com/okian/partyrank/internal/domain/aggregate"
	"github.com/okian/partyrank/internal/domain/model"
	"github.com/okian/partyrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func twoCandidates() []model.Candidate {
	return []model.Candidate{
		{ID: "a", Title: "A", ExpectedScore: 0.5},
		{ID: "b", Title: "B", ExpectedScore: 0.8},
	}
}

func swipe(member, candidate string, d model.Direction) model.Swipe {
	return model.Swipe{MemberID: member, CandidateID: candidate, Direction: d}
}

func startService(opts ...service.Option) *service.Service {
	svc := service.New(opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	So(svc.Start(ctx), ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["aggregationPolicy"], ShouldEqual, "mean")
			So(stats["storeDriver"], ShouldEqual, "memory")
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithDedupeSize(25_000),
			service.WithAggregationPolicy("median"),
		)

		Convey("Then the options should be reflected in stats", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50_000)
			So(stats["dedupeSize"], ShouldEqual, 25_000)
			So(stats["aggregationPolicy"], ShouldEqual, "median")
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["parties"], ShouldEqual, 0)
			})

			Convey("And starting twice should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a service with an unknown aggregation policy", t, func() {
		svc := service.New(service.WithAggregationPolicy("mode"))

		Convey("Then Start should fail", func() {
			err := svc.Start(context.Background())
			So(err, ShouldNotBeNil)
			So(errors.Is(err, aggregate.ErrUnknownPolicy), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})

			Convey("And operations should report ErrNotStarted", func() {
				err := svc.RegisterCandidates(context.Background(), "p", twoCandidates())
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})

			Convey("And stopping twice should be safe", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_RegisterCandidates(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When registering a valid candidate set", func() {
			err := svc.RegisterCandidates(ctx, "p1", twoCandidates())

			Convey("Then the party should exist with those candidates", func() {
				So(err, ShouldBeNil)
				party, err := svc.Party(ctx, "p1")
				So(err, ShouldBeNil)
				So(len(party.Candidates), ShouldEqual, 2)
				So(party.Candidates[0].Title, ShouldEqual, "A")
			})
		})

		Convey("When registering duplicate titles", func() {
			err := svc.RegisterCandidates(ctx, "p1", []model.Candidate{
				{ID: "a", Title: "Same"},
				{ID: "b", Title: "Same"},
			})

			Convey("Then a validation error should be returned", func() {
				So(model.IsValidation(err), ShouldBeTrue)
				So(errors.Is(err, model.ErrDuplicateTitle), ShouldBeTrue)
			})
		})

		Convey("When an expected score is out of range", func() {
			err := svc.RegisterCandidates(ctx, "p1", []model.Candidate{{ID: "a", Title: "A", ExpectedScore: 1.5}})

			Convey("Then a validation error should be returned", func() {
				So(model.IsValidation(err), ShouldBeTrue)
			})
		})
	})
}

func TestService_RecordSwipe(t *testing.T) {
	Convey("Given a party with candidates", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()
		So(svc.RegisterCandidates(ctx, "p1", twoCandidates()), ShouldBeNil)

		Convey("When a member swipes once", func() {
			res, err := svc.RecordSwipe(ctx, "p1", swipe("m1", "a", model.Accept))

			Convey("Then it should be recorded", func() {
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
				party, _ := svc.Party(ctx, "p1")
				So(party.SwipeCount, ShouldEqual, 1)
			})

			Convey("And the same swipe again should be a duplicate", func() {
				res, err := svc.RecordSwipe(ctx, "p1", swipe("m1", "a", model.Reject))
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeTrue)
				party, _ := svc.Party(ctx, "p1")
				So(party.SwipeCount, ShouldEqual, 1)
			})

			Convey("And another member's swipe should not be a duplicate", func() {
				res, err := svc.RecordSwipe(ctx, "p1", swipe("m2", "a", model.Accept))
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When the direction is unknown", func() {
			_, err := svc.RecordSwipe(ctx, "p1", swipe("m1", "a", "maybe"))

			Convey("Then a validation error should be returned", func() {
				So(model.IsValidation(err), ShouldBeTrue)
			})
		})

		Convey("When the party does not exist", func() {
			_, err := svc.RecordSwipe(ctx, "nope", swipe("m1", "a", model.Accept))

			Convey("Then ErrNotFound should be returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And the swipe should not be remembered as seen", func() {
				So(svc.RegisterCandidates(ctx, "nope", twoCandidates()), ShouldBeNil)
				res, err := svc.RecordSwipe(ctx, "nope", swipe("m1", "a", model.Accept))
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			})
		})
	})
}

func TestService_Recompute(t *testing.T) {
	Convey("Given the two-candidate party with two members", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()
		So(svc.RegisterCandidates(ctx, "p1", twoCandidates()), ShouldBeNil)
		for _, s := range []model.Swipe{
			swipe("m1", "a", model.Accept),
			swipe("m1", "b", model.Reject),
			swipe("m2", "a", model.Reject),
		} {
			_, err := svc.RecordSwipe(ctx, "p1", s)
			So(err, ShouldBeNil)
		}

		Convey("Before any recompute the ranking should not exist", func() {
			_, err := svc.TopN(ctx, "p1", 10)
			So(errors.Is(err, repository.ErrNotRanked), ShouldBeTrue)
		})

		Convey("When the consensus is recomputed synchronously", func() {
			res, err := svc.RecomputeResult(ctx, "p1")
			So(err, ShouldBeNil)

			Convey("Then the consensus should match the mean of member ratings", func() {
				So(res.Consensus["A"], ShouldEqual, 1200.0)
				So(res.Consensus["B"], ShouldAlmostEqual, 1187.2, 1e-9)
				So(res.Stats.Members, ShouldEqual, 2)
				So(res.Stats.SwipesApplied, ShouldEqual, 3)
			})

			Convey("Then TopN should serve the stored ranking", func() {
				entries, err := svc.TopN(ctx, "p1", 10)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].Title, ShouldEqual, "A")
				So(entries[0].CandidateID, ShouldEqual, "a")
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[1].Title, ShouldEqual, "B")
			})

			Convey("Then Rank should return one entry", func() {
				e, err := svc.Rank(ctx, "p1", "B")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
				So(e.Rating, ShouldAlmostEqual, 1187.2, 1e-9)

				_, err = svc.Rank(ctx, "p1", "Z")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then TopN should reject a non-positive limit", func() {
				_, err := svc.TopN(ctx, "p1", 0)
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})

			Convey("And replacing the candidates should drop the ranking", func() {
				So(svc.RegisterCandidates(ctx, "p1", twoCandidates()), ShouldBeNil)
				_, err := svc.TopN(ctx, "p1", 10)
				So(errors.Is(err, repository.ErrNotRanked), ShouldBeTrue)
			})
		})

		Convey("When the party is recomputed with the median policy", func() {
			med := startService(service.WithAggregationPolicy("median"))
			defer med.Stop()
			So(med.RegisterCandidates(ctx, "p1", twoCandidates()), ShouldBeNil)
			for _, s := range []model.Swipe{
				swipe("m1", "a", model.Accept),
				swipe("m2", "a", model.Accept),
				swipe("m3", "a", model.Reject),
			} {
				_, err := med.RecordSwipe(ctx, "p1", s)
				So(err, ShouldBeNil)
			}
			res, err := med.RecomputeResult(ctx, "p1")

			Convey("Then the middle member rating should win", func() {
				So(err, ShouldBeNil)
				So(res.Consensus["A"], ShouldEqual, 1216.0)
			})
		})

		Convey("When an unknown party is recomputed", func() {
			err := svc.Recompute(ctx, "nope")

			Convey("Then ErrNotFound should be returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_RankStateless(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When ranking without a stored party", func() {
			res, err := svc.RankStateless(ctx, twoCandidates(), []model.Swipe{
				swipe("m1", "a", model.Accept),
				swipe("m1", "b", model.Reject),
				swipe("m2", "a", model.Reject),
			})

			Convey("Then the result should be computed and nothing stored", func() {
				So(err, ShouldBeNil)
				So(res.Ranking[0].Title, ShouldEqual, "A")
				So(svc.GetStats()["parties"], ShouldEqual, 0)
			})
		})

		Convey("When there are no swipes", func() {
			res, err := svc.RankStateless(ctx, twoCandidates(), nil)

			Convey("Then every candidate should sit at the base rating", func() {
				So(err, ShouldBeNil)
				So(res.Consensus["A"], ShouldEqual, 1200.0)
				So(res.Consensus["B"], ShouldEqual, 1200.0)
				So(res.Ranking[0].Rank, ShouldEqual, 1)
				So(res.Ranking[1].Rank, ShouldEqual, 1)
			})
		})

		Convey("When a swipe is malformed", func() {
			_, err := svc.RankStateless(ctx, twoCandidates(), []model.Swipe{{CandidateID: "a", Direction: model.Accept}})

			Convey("Then a validation error should be returned", func() {
				So(model.IsValidation(err), ShouldBeTrue)
			})
		})
	})
}

func TestService_DeleteParty(t *testing.T) {
	Convey("Given a ranked party", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()
		So(svc.RegisterCandidates(ctx, "p1", twoCandidates()), ShouldBeNil)
		_, err := svc.RecordSwipe(ctx, "p1", swipe("m1", "a", model.Accept))
		So(err, ShouldBeNil)
		So(svc.Recompute(ctx, "p1"), ShouldBeNil)

		Convey("When the party is deleted", func() {
			So(svc.DeleteParty(ctx, "p1"), ShouldBeNil)

			Convey("Then lookups should report ErrNotFound", func() {
				_, err := svc.Party(ctx, "p1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = svc.TopN(ctx, "p1", 5)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And the member may swipe again on a recreated party", func() {
				So(svc.RegisterCandidates(ctx, "p1", twoCandidates()), ShouldBeNil)
				res, err := svc.RecordSwipe(ctx, "p1", swipe("m1", "a", model.Accept))
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When an unknown party is deleted", func() {
			err := svc.DeleteParty(ctx, "nope")

			Convey("Then ErrNotFound should be returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
