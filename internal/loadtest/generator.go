package loadtest

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var (
	topics = []string{
		"Jazz", "Rock", "Tech", "Startup", "Art", "Pottery", "Yoga",
		"Football", "Cooking", "Film", "Poetry", "Chess", "Photography",
	}
	formats = []string{
		"Live %s Night", "%s Meetup", "%s Workshop", "%s Festival", "Intro to %s",
	}
	venues = []string{"downtown", "by the river", "at the community hall", "online", "in the park"}
)

// generateEvents builds n events from a seeded source so that runs can be
// replayed. Each description carries a unique tag so no two events are
// textually identical.
func generateEvents(n int, seed int64) []Event {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	events := make([]Event, n)
	for i := range events {
		topic := topics[rng.Intn(len(topics))]
		name := fmt.Sprintf(formats[rng.Intn(len(formats))], topic)
		events[i] = Event{
			Name:        name,
			Description: fmt.Sprintf("%s %s, ref %s", name, venues[rng.Intn(len(venues))], uuid.NewString()[:8]),
			Date:        start.AddDate(0, 0, rng.Intn(365)).Format("2006-01-02"),
		}
	}
	return events
}
