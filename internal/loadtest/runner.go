package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/okian/eventmatch/pkg/logger"
)

// ErrUnhealthy is returned when the target does not answer its health check.
var ErrUnhealthy = errors.New("service unhealthy")

const directoryPermission = 0o750

// Run executes a complete load run against config.BaseURL.
func Run(ctx context.Context, config Config) (*Stats, error) {
	config.normalize()
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("loadtest")

	log.Info(ctx, "starting eventmatch load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("events", config.NumEvents),
		logger.Int("users", config.NumUsers),
		logger.Int("workers", config.Workers),
		logger.Int64("seed", config.Seed))

	c := newClient(config.BaseURL, config.Timeout, config.RatePerSecond, config.Workers)

	// Step 1: Check service health
	if status, err := c.get(ctx, "/healthz", nil); err != nil || status != http.StatusOK {
		return stats, fmt.Errorf("%w: status %d: %v", ErrUnhealthy, status, err)
	}

	// Step 2: Generate and submit events
	events := generateEvents(config.NumEvents, config.Seed)
	stats.EventsGenerated = len(events)
	if err := submitEvents(ctx, c, config.Workers, events, stats); err != nil {
		return stats, fmt.Errorf("event submission failed: %w", err)
	}

	// Step 3: Sample recommendations
	recs, err := sampleRecommendations(ctx, c, config.Workers, config.NumUsers, stats)
	if err != nil {
		return stats, fmt.Errorf("recommendation sampling failed: %w", err)
	}

	// Step 4: Verify against the catalogue
	if err := verify(ctx, c, recs, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 5: Save events to file
	if config.OutputFile != "" {
		if err := saveEvents(config.OutputFile, events); err != nil {
			log.Warn(ctx, "failed to save events to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "final statistics",
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("usersNotified", stats.UsersNotified),
		logger.Int("recommendations", stats.Recommendations),
		logger.Int("violations", len(stats.Violations)),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// submitEvents posts events concurrently. Individual failures are counted,
// not returned; only cancellation aborts the run.
func submitEvents(ctx context.Context, c *client, workers int, events []Event, stats *Stats) error {
	var submitted, failed, notified int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, e := range events {
		g.Go(func() error {
			var resp submitResponse
			status, err := c.post(gctx, "/events", e, &resp)
			switch {
			case gctx.Err() != nil:
				return gctx.Err()
			case err != nil || status != http.StatusCreated:
				atomic.AddInt64(&failed, 1)
			default:
				atomic.AddInt64(&submitted, 1)
				atomic.AddInt64(&notified, int64(resp.Notified))
			}
			return nil
		})
	}
	err := g.Wait()

	stats.EventsSubmitted = int(submitted)
	stats.EventsFailed = int(failed)
	stats.UsersNotified = int(notified)
	return err
}

// sampleRecommendations fetches a recommendation for users 1..n.
func sampleRecommendations(ctx context.Context, c *client, workers, n int, stats *Stats) ([]recommendation, error) {
	var (
		mu   sync.Mutex
		recs []recommendation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id := 1; id <= n; id++ {
		g.Go(func() error {
			var rec recommendation
			status, err := c.get(gctx, "/users/"+strconv.Itoa(id)+"/recommendation", &rec)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.RequestsFailed++
			case status == http.StatusNotFound:
				stats.RecommendationMiss++
			case status != http.StatusOK:
				stats.RequestsFailed++
			case !rec.Found:
				stats.RecommendationNone++
			default:
				stats.Recommendations++
				recs = append(recs, rec)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recs, nil
}

// verify checks every found recommendation names a catalogue event and
// carries a cosine score in [0, 1].
func verify(ctx context.Context, c *client, recs []recommendation, stats *Stats) error {
	var catalogue []catalogueEvent
	status, err := c.get(ctx, "/events", &catalogue)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("list events: status %d", status)
	}

	names := make(map[int64]string, len(catalogue))
	for _, e := range catalogue {
		names[e.ID] = e.Name
	}
	for _, r := range recs {
		name, ok := names[r.EventID]
		switch {
		case !ok:
			stats.Violations = append(stats.Violations, fmt.Sprintf("user %d: event %d not in catalogue", r.UserID, r.EventID))
		case name != r.Name:
			stats.Violations = append(stats.Violations, fmt.Sprintf("user %d: event %d named %q, catalogue has %q", r.UserID, r.EventID, r.Name, name))
		}
		if r.Score < -scoreTolerance || r.Score > 1+scoreTolerance {
			stats.Violations = append(stats.Violations, fmt.Sprintf("user %d: score %f out of range", r.UserID, r.Score))
		}
	}
	return nil
}

func saveEvents(filename string, events []Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}
