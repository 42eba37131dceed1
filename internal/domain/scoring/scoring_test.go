package scoring_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/okian/partyrank/internal/domain/model"
	scoring "github.com/okian/partyrank/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func swipe(member, candidate string, d model.Direction) model.Swipe {
	return model.Swipe{MemberID: member, CandidateID: candidate, Direction: d}
}

func TestMemberScorer_Score(t *testing.T) {
	Convey("Given a default member scorer", t, func() {
		scorer := scoring.NewMemberScorer()
		candidates := []model.Candidate{
			{ID: "a", Title: "A", ExpectedScore: 0.5},
			{ID: "b", Title: "B", ExpectedScore: 0.8},
			{ID: "c", Title: "C", ExpectedScore: 0.5},
		}

		Convey("When the member issued no swipes", func() {
			v, err := scorer.Score(candidates, nil)

			Convey("Then every candidate should sit at the base rating", func() {
				So(err, ShouldBeNil)
				So(len(v), ShouldEqual, len(candidates))
				So(v["A"], ShouldEqual, scoring.BaseRating)
				So(v["C"], ShouldEqual, scoring.BaseRating)
				So(v["B"], ShouldEqual, scoring.BaseRating)
			})
		})

		Convey("When a single candidate is accepted", func() {
			v, err := scorer.Score(candidates, []model.Swipe{swipe("u1", "b", model.Accept)})

			Convey("Then its rating should rise by K*(1-e)", func() {
				So(err, ShouldBeNil)
				So(v["B"], ShouldAlmostEqual, scoring.BaseRating+32*(1-0.8), 1e-9)
				So(v["A"], ShouldEqual, scoring.BaseRating)
			})
		})

		Convey("When a single candidate is rejected", func() {
			v, err := scorer.Score(candidates, []model.Swipe{swipe("u1", "b", model.Reject)})

			Convey("Then its rating should move by K*(0-e)", func() {
				So(err, ShouldBeNil)
				So(v["B"], ShouldAlmostEqual, scoring.BaseRating+32*(0-0.8), 1e-9)
				So(v["B"], ShouldAlmostEqual, 1174.4, 1e-9)
			})
		})

		Convey("When the member accepts A and rejects B", func() {
			v, err := scorer.Score(candidates, []model.Swipe{
				swipe("u1", "a", model.Accept),
				swipe("u1", "b", model.Reject),
			})

			Convey("Then it should match the reference ratings", func() {
				So(err, ShouldBeNil)
				So(v["A"], ShouldEqual, 1216.0)
				So(v["B"], ShouldAlmostEqual, 1174.4, 1e-9)
				So(v["C"], ShouldEqual, 1200.0)
			})
		})

		Convey("When a swipe references an unknown candidate", func() {
			v, stats, err := scorer.ScoreWithStats(candidates, []model.Swipe{
				swipe("u1", "zzz", model.Accept),
				swipe("u1", "a", model.Reject),
			})

			Convey("Then it should be ignored without error", func() {
				So(err, ShouldBeNil)
				So(stats.Ignored, ShouldEqual, 1)
				So(stats.Applied, ShouldEqual, 1)
				So(v["A"], ShouldEqual, 1184.0)
				So(len(v), ShouldEqual, 3)
			})
		})

		Convey("When a swipe has an unknown direction", func() {
			_, err := scorer.Score(candidates, []model.Swipe{swipe("u1", "a", "sideways")})

			Convey("Then it should be a validation error", func() {
				So(model.IsValidation(err), ShouldBeTrue)
			})
		})

		Convey("When the candidate set is empty", func() {
			v, err := scorer.Score(nil, []model.Swipe{swipe("u1", "a", model.Accept)})

			Convey("Then the vector should be empty", func() {
				So(err, ShouldBeNil)
				So(v, ShouldBeEmpty)
			})
		})
	})
}

func TestMemberScorer_OrderIndependencePerCandidate(t *testing.T) {
	Convey("Given repeated swipes on the same candidate", t, func() {
		scorer := scoring.NewMemberScorer()
		candidates := []model.Candidate{
			{ID: "x", Title: "X", ExpectedScore: 0.37},
			{ID: "y", Title: "Y", ExpectedScore: 0.91},
		}
		forward := []model.Swipe{
			swipe("u1", "x", model.Accept),
			swipe("u1", "y", model.Reject),
			swipe("u1", "x", model.Reject),
			swipe("u1", "x", model.Accept),
			swipe("u1", "y", model.Accept),
		}
		backward := make([]model.Swipe, len(forward))
		for i := range forward {
			backward[len(forward)-1-i] = forward[i]
		}

		Convey("When the log is replayed in two different orders", func() {
			v1, err1 := scorer.Score(candidates, forward)
			v2, err2 := scorer.Score(candidates, backward)

			Convey("Then the final ratings should be identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(v1, ShouldResemble, v2)
			})

			Convey("And each rating should be baseline plus the sum of deltas", func() {
				So(v1["X"], ShouldAlmostEqual, 1200+32*(1-0.37)*2+32*(0-0.37), 1e-9)
				So(v1["Y"], ShouldAlmostEqual, 1200+32*(1-0.91)+32*(0-0.91), 1e-9)
			})
		})
	})
}

func TestMemberScorer_Validation(t *testing.T) {
	Convey("Given malformed inputs", t, func() {
		scorer := scoring.NewMemberScorer()

		Convey("When an expected score is outside [0,1]", func() {
			_, err := scorer.Score([]model.Candidate{{ID: "a", Title: "A", ExpectedScore: -0.1}}, nil)

			Convey("Then scoring should be rejected", func() {
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When an expected score is infinite", func() {
			_, err := scorer.Score([]model.Candidate{{ID: "a", Title: "A", ExpectedScore: math.Inf(1)}}, nil)

			Convey("Then scoring should be rejected", func() {
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When titles collide", func() {
			_, err := scorer.Score([]model.Candidate{
				{ID: "a", Title: "Heat", ExpectedScore: 0.5},
				{ID: "b", Title: "Heat", ExpectedScore: 0.5},
			}, nil)

			Convey("Then scoring should be rejected as a duplicate title", func() {
				So(errors.Is(err, model.ErrDuplicateTitle), ShouldBeTrue)
			})
		})

		Convey("When the update overflows to infinity", func() {
			huge := scoring.NewMemberScorer(scoring.WithKFactor(math.MaxFloat64))
			_, err := huge.Score(
				[]model.Candidate{{ID: "a", Title: "A", ExpectedScore: 0}},
				[]model.Swipe{swipe("u1", "a", model.Accept), swipe("u1", "a", model.Accept)},
			)

			Convey("Then it should surface as a non-finite validation error", func() {
				So(errors.Is(err, model.ErrNonFinite), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}

func TestMemberScorer_Options(t *testing.T) {
	Convey("Given scorer options", t, func() {
		Convey("When a custom base rating and K are set", func() {
			s := scoring.NewMemberScorer(scoring.WithBaseRating(1000), scoring.WithKFactor(16))
			v, err := s.Score([]model.Candidate{{ID: "a", Title: "A", ExpectedScore: 0.5}},
				[]model.Swipe{swipe("u1", "a", model.Accept)})

			Convey("Then they should drive the update", func() {
				So(err, ShouldBeNil)
				So(s.BaseRating(), ShouldEqual, 1000.0)
				So(v["A"], ShouldEqual, 1008.0)
			})
		})

		Convey("When invalid values are passed", func() {
			s := scoring.NewMemberScorer(scoring.WithBaseRating(math.NaN()), scoring.WithKFactor(-4))

			Convey("Then defaults should be kept", func() {
				v, err := s.Score([]model.Candidate{{ID: "a", Title: "A", ExpectedScore: 0.5}},
					[]model.Swipe{swipe("u1", "a", model.Accept)})
				So(err, ShouldBeNil)
				So(s.BaseRating(), ShouldEqual, scoring.BaseRating)
				So(v["A"], ShouldEqual, 1216.0)
			})
		})
	})
}

func TestMemberScorer_Concurrency(t *testing.T) {
	Convey("Given one scorer shared by many members", t, func() {
		scorer := scoring.NewMemberScorer()
		candidates := []model.Candidate{{ID: "a", Title: "A", ExpectedScore: 0.5}}

		Convey("When members are scored in parallel", func() {
			const members = 32
			results := make([]model.RatingVector, members)
			var wg sync.WaitGroup
			for i := 0; i < members; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					d := model.Accept
					if i%2 == 1 {
						d = model.Reject
					}
					results[i], _ = scorer.Score(candidates, []model.Swipe{swipe("u", "a", d)})
				}(i)
			}
			wg.Wait()

			Convey("Then every member should get its own vector", func() {
				for i, v := range results {
					if i%2 == 0 {
						So(v["A"], ShouldEqual, 1216.0)
					} else {
						So(v["A"], ShouldEqual, 1184.0)
					}
				}
			})
		})
	})
}
