package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	service "github.com/okian/eventmatch/internal/app"
	"github.com/okian/eventmatch/internal/adapters/repository"
	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/internal/domain/predict"
	"github.com/okian/eventmatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type recordingSink struct {
	mu   sync.Mutex
	sent []model.Notification
	fail error
}

func (r *recordingSink) Deliver(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recordingSink) last() model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func openStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.Open(context.Background(), filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seed loads two events and three users:
// ada likes jazz and already went to the concert, bob likes tech,
// cy has a music-heavy history but currently lists art.
func seed(t *testing.T, s *repository.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(s.PutEvent(ctx, model.Event{ID: 1, Name: "Live Jazz Concert", Description: "Live Jazz Concert"}))
	must(s.PutEvent(ctx, model.Event{ID: 2, Name: "Tech Startup Meetup", Description: "Tech Startup Meetup"}))
	must(s.PutUser(ctx, model.User{ID: 1, Name: "Ada", Email: "ada@example.com", Interest: "jazz"}))
	must(s.PutUser(ctx, model.User{ID: 2, Name: "Bob", Email: "bob@example.com", Interest: "tech"}))
	must(s.PutUser(ctx, model.User{ID: 3, Name: "Cy", Email: "cy@example.com", Interest: "art"}))
	must(s.AddParticipation(ctx, 1, 1))
	must(s.AddInterest(ctx, 3, "music"))
	must(s.AddInterest(ctx, 3, "music"))
	must(s.AddInterest(ctx, 3, "sports"))
}

// faultyStore fails History for one user and, when usersErr is set, every
// Users call.
type faultyStore struct {
	repository.Store
	historyFailsFor int64
	usersErr        error
}

func (f *faultyStore) History(ctx context.Context, userID int64) ([]string, error) {
	if userID == f.historyFailsFor {
		return nil, errors.New("history unavailable")
	}
	return f.Store.History(ctx, userID)
}

func (f *faultyStore) Users(ctx context.Context) ([]model.User, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.Store.Users(ctx)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(openStore(t), &recordingSink{})

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["ready"], ShouldEqual, false)
			So(stats["threshold"], ShouldEqual, 0.1)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(openStore(t), &recordingSink{},
			service.WithWorkerCount(2),
			service.WithQueueSize(64),
			service.WithDedupeSize(32),
			service.WithBroadcastConcurrency(3),
			service.WithThreshold(0.25),
			service.WithRandomSeed(7),
			service.WithAnnealerOptions(predict.WithSamplesPerLevel(10)),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 64)
			So(stats["threshold"], ShouldEqual, 0.25)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service over an empty store", t, func() {
		svc := service.New(openStore(t), &recordingSink{}, service.WithWorkerCount(1))
		ctx := context.Background()

		Convey("When starting the service", func() {
			err := svc.Start(ctx)
			defer func() { _ = svc.Stop(ctx) }()

			Convey("Then it starts but is not ready", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["ready"], ShouldEqual, false)
			})

			Convey("Then recommendations report not ready", func() {
				_, err := svc.Recommend(ctx, 1)
				So(errors.Is(err, service.ErrNotReady), ShouldBeTrue)
			})

			Convey("Then starting twice is harmless", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})

		Convey("When stopping a started service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then stopping again is a no-op", func() {
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Recommend(t *testing.T) {
	Convey("Given a started service over the jazz and tech catalogue", t, func() {
		store := openStore(t)
		seed(t, store)
		svc := service.New(store, &recordingSink{}, service.WithWorkerCount(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When recommending for a tech fan", func() {
			rec, err := svc.Recommend(ctx, 2)

			Convey("Then the meetup is picked", func() {
				So(err, ShouldBeNil)
				So(rec.Found, ShouldBeTrue)
				So(rec.EventID, ShouldEqual, 2)
				So(rec.Name, ShouldEqual, "Tech Startup Meetup")
				So(rec.Score, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When recommending for a jazz fan who already saw the concert", func() {
			rec, err := svc.Recommend(ctx, 1)

			Convey("Then the concert is excluded", func() {
				So(err, ShouldBeNil)
				So(rec.Found, ShouldBeTrue)
				So(rec.EventID, ShouldEqual, 2)
				So(rec.Score, ShouldEqual, 0)
			})
		})

		Convey("When every event was attended", func() {
			So(store.AddParticipation(ctx, 2, 1, 2), ShouldBeNil)
			rec, err := svc.Recommend(ctx, 2)

			Convey("Then nothing is found", func() {
				So(err, ShouldBeNil)
				So(rec.Found, ShouldBeFalse)
			})
		})

		Convey("When the user does not exist", func() {
			_, err := svc.Recommend(ctx, 99)

			Convey("Then a not found error is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the space is rebuilt from the same catalogue", func() {
			before, err := svc.Recommend(ctx, 2)
			So(err, ShouldBeNil)
			So(svc.Rebuild(ctx), ShouldBeNil)
			after, err := svc.Recommend(ctx, 2)
			So(err, ShouldBeNil)

			Convey("Then scores are identical", func() {
				So(after.Score, ShouldEqual, before.Score)
				So(after.EventID, ShouldEqual, before.EventID)
			})
		})
	})
}

func TestService_Predict(t *testing.T) {
	Convey("Given a service with a fixed random seed", t, func() {
		store := openStore(t)
		seed(t, store)
		svc := service.New(store, &recordingSink{}, service.WithRandomSeed(42))
		ctx := context.Background()

		Convey("When predicting for a user whose history favours music", func() {
			p, err := svc.Predict(ctx, 3)

			Convey("Then music is forecast", func() {
				So(err, ShouldBeNil)
				So(p.Seed, ShouldEqual, "art")
				So(p.Interest, ShouldEqual, "music")
				So(p.Score, ShouldEqual, 2)
			})

			Convey("Then the same seed gives the same answer", func() {
				again, err := svc.Predict(ctx, 3)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, p)
			})
		})

		Convey("When the user has no current interest", func() {
			So(store.PutUser(ctx, model.User{ID: 4, Name: "Dee", Email: "dee@example.com"}), ShouldBeNil)
			_, err := svc.Predict(ctx, 4)

			Convey("Then a domain error is returned", func() {
				So(errors.Is(err, predict.ErrDomain), ShouldBeTrue)
			})
		})

		Convey("When the user does not exist", func() {
			_, err := svc.Predict(ctx, 99)

			Convey("Then a not found error is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_SubmitEvent(t *testing.T) {
	Convey("Given a started service with a recording sink", t, func() {
		store := openStore(t)
		seed(t, store)
		sink := &recordingSink{}
		svc := service.New(store, sink, service.WithWorkerCount(2), service.WithRandomSeed(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a jazz event is submitted", func() {
			date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
			e, rows, err := svc.SubmitEvent(ctx, "Jazz Night", "", date)

			Convey("Then it gets the next id and its name as description", func() {
				So(err, ShouldBeNil)
				So(e.ID, ShouldEqual, 3)
				So(e.Description, ShouldEqual, "Jazz Night")
			})

			Convey("Then only the jazz fan is notified", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].UserID, ShouldEqual, 1)
				So(rows[0].EventSentTo, ShouldEqual, "Jazz Night")
				So(rows[0].PastEvents, ShouldResemble, []int64{1})
				So(rows[0].Similarity, ShouldBeGreaterThan, 0.1)
				So(rows[0].PredictedInterest, ShouldNotBeEmpty)
				So(rows[0].Queued, ShouldBeTrue)
				So(eventually(func() bool { return sink.count() == 1 }), ShouldBeTrue)
				So(sink.last().Recipient, ShouldEqual, "ada@example.com")
				So(sink.last().Event.ID, ShouldEqual, 3)
			})

			Convey("Then the new event is part of the space", func() {
				So(svc.GetStats()["events"], ShouldEqual, 3)
			})

			Convey("Then broadcasting it again does not notify twice", func() {
				again, err := svc.Broadcast(ctx, e)
				So(err, ShouldBeNil)
				So(len(again), ShouldEqual, 1)
				So(again[0].Queued, ShouldBeFalse)
			})
		})

		Convey("When an event matches nobody", func() {
			_, rows, err := svc.SubmitEvent(ctx, "Pottery Workshop", "Clay and glaze", time.Time{})

			Convey("Then no rows are produced", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
			})
		})

		Convey("When the name is blank", func() {
			_, _, err := svc.SubmitEvent(ctx, "   ", "", time.Time{})

			Convey("Then the event is rejected", func() {
				So(errors.Is(err, service.ErrInvalidEvent), ShouldBeTrue)
			})
		})
	})

	Convey("Given a catalogue without jazz and a jazz fan", t, func() {
		store := openStore(t)
		ctx := context.Background()
		So(store.PutEvent(ctx, model.Event{ID: 1, Name: "Tech Startup Meetup", Description: "Tech Startup Meetup"}), ShouldBeNil)
		So(store.PutUser(ctx, model.User{ID: 1, Name: "Ada", Email: "ada@example.com", Interest: "jazz"}), ShouldBeNil)
		sink := &recordingSink{}
		svc := service.New(store, sink, service.WithWorkerCount(1), service.WithRandomSeed(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When the description mentions jazz but the name does not", func() {
			e, rows, err := svc.SubmitEvent(ctx, "Friday Night Out", "Live jazz concert by the harbor", time.Time{})

			Convey("Then the fan is matched on the description", func() {
				So(err, ShouldBeNil)
				So(e.Description, ShouldEqual, "Live jazz concert by the harbor")
				So(len(rows), ShouldEqual, 1)
				So(rows[0].UserID, ShouldEqual, 1)
				So(rows[0].EventSentTo, ShouldEqual, "Friday Night Out")
				So(rows[0].Similarity, ShouldBeGreaterThan, 0.1)
				So(rows[0].Queued, ShouldBeTrue)
				So(eventually(func() bool { return sink.count() == 1 }), ShouldBeTrue)
			})
		})
	})

	Convey("Given a store that fails after the event is added", t, func() {
		base := openStore(t)
		seed(t, base)
		store := &faultyStore{Store: base}
		svc := service.New(store, &recordingSink{}, service.WithWorkerCount(1), service.WithRandomSeed(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		store.usersErr = errors.New("users unavailable")

		Convey("When an event is submitted", func() {
			e, rows, err := svc.SubmitEvent(ctx, "Jazz Night", "", time.Time{})

			Convey("Then the stored event is returned with the error", func() {
				So(err, ShouldNotBeNil)
				So(e.ID, ShouldEqual, 3)
				So(rows, ShouldBeNil)
				stored, err := base.Event(ctx, 3)
				So(err, ShouldBeNil)
				So(stored.Name, ShouldEqual, "Jazz Night")
			})
		})
	})
}

func TestService_BroadcastPredictionFailure(t *testing.T) {
	Convey("Given two jazz fans and a history that fails for one of them", t, func() {
		base := openStore(t)
		seed(t, base)
		ctx := context.Background()
		So(base.PutUser(ctx, model.User{ID: 4, Name: "Dee", Email: "dee@example.com", Interest: "jazz"}), ShouldBeNil)
		store := &faultyStore{Store: base, historyFailsFor: 1}
		sink := &recordingSink{}
		svc := service.New(store, sink, service.WithWorkerCount(2), service.WithRandomSeed(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a jazz event is broadcast", func() {
			_, rows, err := svc.SubmitEvent(ctx, "Jazz Night", "", time.Time{})

			Convey("Then the failing user is still queued with the error recorded", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[0].UserID, ShouldEqual, 1)
				So(rows[0].PredictionError, ShouldContainSubstring, "history unavailable")
				So(rows[0].PredictedInterest, ShouldBeEmpty)
				So(rows[0].Queued, ShouldBeTrue)
			})

			Convey("Then the other user gets a prediction", func() {
				So(rows[1].UserID, ShouldEqual, 4)
				So(rows[1].PredictionError, ShouldBeEmpty)
				So(rows[1].PredictedInterest, ShouldEqual, "jazz")
				So(rows[1].Queued, ShouldBeTrue)
			})

			Convey("Then both notifications are delivered", func() {
				So(eventually(func() bool { return sink.count() == 2 }), ShouldBeTrue)
			})
		})
	})
}
