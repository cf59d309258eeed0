// Package service wires the vector space, ranker, predictor and the
// notification pipeline behind the operations exposed by the HTTP API and CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	eventqueue "github.com/okian/eventmatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/eventmatch/internal/adapters/mq/worker"
	"github.com/okian/eventmatch/internal/adapters/repository"
	"github.com/okian/eventmatch/internal/domain/dedupe"
	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/internal/domain/predict"
	"github.com/okian/eventmatch/internal/domain/ranking"
	"github.com/okian/eventmatch/internal/domain/textvec"
	"github.com/okian/eventmatch/internal/domain/types"
	"github.com/okian/eventmatch/pkg/logger"
	"github.com/okian/eventmatch/pkg/metrics"
)

// snapshot is an immutable view of the catalogue at one rebuild.
type snapshot struct {
	ranker     *ranking.Ranker
	candidates []ranking.Candidate
	vectors    map[string]textvec.Vector
	events     map[string]model.Event
	builtAt    time.Time
}

// Service implements the API dependencies for event matching.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store    repository.Store
	sink     workerpool.Deliverer
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool
	annealer *predict.Annealer

	snap      atomic.Pointer[snapshot]
	rebuildMu sync.Mutex
	seq       atomic.Int64

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	concurrency     int
	threshold       float64
	randomSeed      int64
	deliveryTimeout time.Duration
	annealOpts      []predict.Option
	spaceOpts       []textvec.Option

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the (user, event) deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithBroadcastConcurrency bounds the goroutines evaluating users per broadcast.
func WithBroadcastConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithThreshold sets the similarity a user must exceed to be notified.
func WithThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t < 1 {
			s.threshold = t
		}
	}
}

// WithRandomSeed fixes prediction randomness. Zero keeps time-based seeding.
func WithRandomSeed(seed int64) Option {
	return func(s *Service) {
		s.randomSeed = seed
	}
}

// WithDeliveryTimeout bounds a single delivery attempt.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// WithAnnealerOptions adjusts the prediction schedule.
func WithAnnealerOptions(opts ...predict.Option) Option {
	return func(s *Service) {
		s.annealOpts = append(s.annealOpts, opts...)
	}
}

// WithSpaceOptions adjusts how the vector space is fitted.
func WithSpaceOptions(opts ...textvec.Option) Option {
	return func(s *Service) {
		s.spaceOpts = append(s.spaceOpts, opts...)
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

// New constructs a Service over store, delivering notifications through sink.
func New(store repository.Store, sink workerpool.Deliverer, opts ...Option) *Service {
	s := &Service{
		store:       store,
		sink:        sink,
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  50_000,
		concurrency: runtime.NumCPU(),
		threshold:   ranking.DefaultThreshold,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.annealer = predict.NewAnnealer(s.annealOpts...)
	return s
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s.logger
}

// Start builds the first snapshot and starts the delivery workers. An empty
// catalogue is not fatal: the service stays not-ready until an event exists.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return fmt.Errorf("start: %w: no store", ErrNotReady)
	}

	s.log().Info(ctx, "starting event match service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	var poolOpts []workerpool.Option
	if s.deliveryTimeout > 0 {
		poolOpts = append(poolOpts, workerpool.WithDeliveryTimeout(s.deliveryTimeout))
	}
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.sink, poolOpts...)
	s.pool.Start(ctx)

	if err := s.Rebuild(ctx); err != nil {
		if !errors.Is(err, textvec.ErrConfiguration) {
			s.pool.Stop()
			return err
		}
		s.log().Warn(ctx, "catalogue empty, recommendations unavailable until an event is added")
	}

	s.started = true
	s.log().Info(ctx, "event match service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Float64("threshold", s.threshold),
	)
	return nil
}

// Stop closes the queue and waits for queued notifications to drain.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log().Info(ctx, "stopping event match service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.log().Info(ctx, "event match service stopped",
		logger.Int64("delivered", s.pool.Counters().Delivered()),
		logger.Int64("failed", s.pool.Counters().Failed()),
	)
	return err
}

// Rebuild fits a new vector space over the current catalogue and swaps it in.
// Readers holding the previous snapshot are unaffected.
func (s *Service) Rebuild(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	events, err := s.store.Events(ctx)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	corpus := make([]string, len(events))
	docs := make([]ranking.Document, len(events))
	byKey := make(map[string]model.Event, len(events))
	for i, e := range events {
		corpus[i] = e.Text()
		docs[i] = ranking.Document{ID: e.Key(), Text: e.Text()}
		byKey[e.Key()] = e
	}

	space, err := textvec.Build(corpus, s.spaceOpts...)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	ranker := ranking.New(space)
	candidates := ranker.Candidates(docs)
	vectors := make(map[string]textvec.Vector, len(candidates))
	for _, c := range candidates {
		vectors[c.ID] = c.Vector
	}

	s.snap.Store(&snapshot{
		ranker:     ranker,
		candidates: candidates,
		vectors:    vectors,
		events:     byKey,
		builtAt:    time.Now(),
	})

	metrics.RecordSpaceBuild(float64(time.Since(start).Milliseconds()), space.Size(), space.Documents())
	metrics.UpdateTotalEvents(len(events))
	s.log().Debug(ctx, "vector space rebuilt",
		logger.Int("documents", space.Documents()),
		logger.Int("vocabulary", space.Size()),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

func (s *Service) current() (*snapshot, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// Events returns the catalogue in id order.
func (s *Service) Events(ctx context.Context) ([]model.Event, error) {
	return s.store.Events(ctx)
}

// Recommend returns the best event the user has not taken part in, ranked by
// similarity between the user's interest and each event description.
func (s *Service) Recommend(ctx context.Context, userID int64) (types.Recommendation, error) {
	snap, err := s.current()
	if err != nil {
		return types.Recommendation{}, err
	}
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return types.Recommendation{}, fmt.Errorf("recommend for user %d: %w", userID, err)
	}
	past, err := s.store.Participation(ctx, userID)
	if err != nil {
		return types.Recommendation{}, fmt.Errorf("recommend for user %d: %w", userID, err)
	}

	exclude := make([]string, len(past))
	for i, id := range past {
		exclude[i] = model.Event{ID: id}.Key()
	}

	start := time.Now()
	id, ok, err := snap.ranker.BestMatch(user.Interest, snap.candidates, ranking.ExcludeSet(exclude...))
	metrics.RecordRankLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordRecommendation("error")
		return types.Recommendation{}, fmt.Errorf("recommend for user %d: %w", userID, err)
	}

	rec := types.Recommendation{UserID: userID, Query: user.Interest}
	if !ok {
		metrics.RecordRecommendation("none")
		return rec, nil
	}
	metrics.RecordRecommendation("found")
	e := snap.events[id]
	rec.Found = true
	rec.EventID = e.ID
	rec.Name = e.Name
	rec.Score = snap.ranker.Score(user.Interest, snap.vectors[id])
	return rec, nil
}

// Predict forecasts the user's next dominant interest from their history.
func (s *Service) Predict(ctx context.Context, userID int64) (types.Prediction, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("predict for user %d: %w", userID, err)
	}
	labels, err := s.store.InterestLabels(ctx)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("predict for user %d: %w", userID, err)
	}
	res, err := s.predictFor(ctx, user, predict.NewAlphabet(labels...), s.rngFor(s.baseSeed(), userID))
	if err != nil {
		return types.Prediction{}, fmt.Errorf("predict for user %d: %w", userID, err)
	}
	return types.Prediction{
		UserID:   userID,
		Seed:     res.Seed,
		Interest: res.Interest,
		Score:    res.Score,
	}, nil
}

func (s *Service) predictFor(ctx context.Context, user model.User, alphabet predict.Alphabet, rng predict.Source) (predict.Result, error) {
	history, err := s.store.History(ctx, user.ID)
	if err != nil {
		return predict.Result{}, err
	}
	start := time.Now()
	res, err := s.annealer.Run(user.Interest, history, alphabet, rng)
	if err != nil {
		metrics.RecordPredictionError()
		return predict.Result{}, err
	}
	metrics.RecordPrediction(float64(time.Since(start).Microseconds()) / 1000)
	return res, nil
}

// baseSeed picks the seed a call derives its per-user streams from.
func (s *Service) baseSeed() int64 {
	if s.randomSeed != 0 {
		return s.randomSeed
	}
	return time.Now().UnixNano() + s.seq.Add(1)
}

// rngFor returns a private stream for one user's search.
func (s *Service) rngFor(base, userID int64) *rand.Rand {
	return rand.New(rand.NewSource(base + userID)) //nolint:gosec // not used for security
}

// SubmitEvent adds an event to the catalogue, rebuilds the space and
// announces it to every user whose interest is similar enough.
func (s *Service) SubmitEvent(ctx context.Context, name, description string, date time.Time) (model.Event, []types.Portfolio, error) {
	if strings.TrimSpace(name) == "" {
		return model.Event{}, nil, fmt.Errorf("submit event: %w: empty name", ErrInvalidEvent)
	}
	e, err := s.store.AddEvent(ctx, name, description, date)
	if err != nil {
		return model.Event{}, nil, fmt.Errorf("submit event: %w", err)
	}
	s.log().Info(ctx, "event added",
		logger.Int64("event_id", e.ID),
		logger.String("name", e.Name),
	)

	if err := s.Rebuild(ctx); err != nil {
		return e, nil, err
	}
	rows, err := s.Broadcast(ctx, e)
	if err != nil {
		return e, nil, err
	}
	return e, rows, nil
}

// Broadcast evaluates every user against event and queues a notification for
// each user whose interest passes the threshold. Rows come back in user order.
// A failure for one user is recorded on that user's row.
func (s *Service) Broadcast(ctx context.Context, event model.Event) ([]types.Portfolio, error) {
	start := time.Now()
	defer func() {
		metrics.RecordBroadcast(float64(time.Since(start).Milliseconds()))
	}()

	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	users, err := s.store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("broadcast event %d: %w", event.ID, err)
	}
	metrics.UpdateTotalUsers(len(users))
	labels, err := s.store.InterestLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("broadcast event %d: %w", event.ID, err)
	}

	alphabet := predict.NewAlphabet(labels...)
	eventVec := snap.ranker.Space().Vectorize(event.Text())
	base := s.baseSeed()

	rows := make([]*types.Portfolio, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, u := range users {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = s.evaluate(gctx, snap, event, eventVec, u, alphabet, s.rngFor(base, u.ID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("broadcast event %d: %w", event.ID, err)
	}

	out := make([]types.Portfolio, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	s.log().Info(ctx, "broadcast finished",
		logger.Int64("event_id", event.ID),
		logger.Int("users", len(users)),
		logger.Int("matched", len(out)),
	)
	return out, nil
}

// evaluate gates one user and, on a match, predicts and queues the email.
// It returns nil when the user does not pass the threshold.
func (s *Service) evaluate(ctx context.Context, snap *snapshot, event model.Event, eventVec textvec.Vector, u model.User, alphabet predict.Alphabet, rng predict.Source) *types.Portfolio {
	passed := snap.ranker.PassesThreshold(u.Interest, eventVec, s.threshold)
	metrics.RecordThresholdDecision(passed)
	if !passed {
		return nil
	}

	row := &types.Portfolio{
		UserID:      u.ID,
		Name:        u.Name,
		Email:       u.Email,
		EventSentTo: event.Name,
		Interests:   u.Interest,
		Similarity:  snap.ranker.Score(u.Interest, eventVec),
	}

	past, err := s.store.Participation(ctx, u.ID)
	if err != nil {
		s.log().Warn(ctx, "participation lookup failed",
			logger.Int64("user_id", u.ID),
			logger.Error(err),
		)
	}
	row.PastEvents = past

	res, err := s.predictFor(ctx, u, alphabet, rng)
	if err != nil {
		row.PredictionError = err.Error()
		s.log().Warn(ctx, "prediction failed",
			logger.Int64("user_id", u.ID),
			logger.Error(err),
		)
	} else {
		row.PredictedInterest = res.Interest
	}

	n := model.Notification{
		ID:                uuid.NewString(),
		UserID:            u.ID,
		Recipient:         u.Email,
		Event:             event,
		PredictedInterest: row.PredictedInterest,
		CreatedAt:         time.Now(),
	}
	if err := s.enqueue(ctx, n); err != nil {
		s.log().Warn(ctx, "notification not queued",
			logger.Int64("user_id", u.ID),
			logger.Int64("event_id", event.ID),
			logger.Error(err),
		)
		return row
	}
	row.Queued = true
	return row
}

// errDuplicate marks a (user, event) pair that was already announced.
var errDuplicate = errors.New("already notified")

// enqueue hands n to the delivery queue at most once per (user, event).
func (s *Service) enqueue(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam: Notification is passed by value for channel semantics
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	key := n.DedupeKey()
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordNotificationDuplicate()
		return errDuplicate
	}
	if !s.queue.Enqueue(ctx, n) {
		s.deduper.Unrecord(ctx, key)
		if s.queue.IsClosed() {
			return eventqueue.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return eventqueue.ErrFull
	}
	metrics.RecordNotificationEnqueued()
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"threshold":   s.threshold,
		"ready":       false,
	}

	if snap := s.snap.Load(); snap != nil {
		space := snap.ranker.Space()
		stats["ready"] = true
		stats["events"] = space.Documents()
		stats["vocabulary"] = space.Size()
		stats["builtAt"] = snap.builtAt.UTC().Format(time.RFC3339)
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["workers"] = s.pool.Size()
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	if s.pool != nil {
		stats["delivered"] = s.pool.Counters().Delivered()
		stats["failed"] = s.pool.Counters().Failed()
	}

	return stats
}
