// Package loadtest drives a running eventmatch server over HTTP: it submits
// synthetic events, samples recommendations and checks the answers against
// the catalogue.
package loadtest

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	NumEvents     int           // Number of events to generate and submit
	NumUsers      int           // Users 1..NumUsers are sampled for recommendations
	Workers       int           // Number of concurrent requests
	RatePerSecond float64       // Request rate cap; zero means unlimited
	Timeout       time.Duration // HTTP request timeout
	Seed          int64         // Generator seed; zero picks one from the clock
	OutputFile    string        // Generated events are saved here when set
}

// Event is the body posted to /events.
type Event struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated    int           `json:"events_generated"`
	EventsSubmitted    int           `json:"events_submitted"`
	EventsFailed       int           `json:"events_failed"`
	UsersNotified      int           `json:"users_notified"`
	Recommendations    int           `json:"recommendations"`
	RecommendationNone int           `json:"recommendations_none"`
	RecommendationMiss int           `json:"recommendations_missing_user"`
	RequestsFailed     int           `json:"requests_failed"`
	Violations         []string      `json:"violations,omitempty"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Duration           time.Duration `json:"duration"`
}

// Response bodies read back from the server.
type (
	catalogueEvent struct {
		ID   int64  `json:"event_id"`
		Name string `json:"name"`
	}

	submitResponse struct {
		Event    catalogueEvent `json:"event"`
		Notified int            `json:"notified"`
	}

	recommendation struct {
		UserID  int64   `json:"user_id"`
		EventID int64   `json:"event_id"`
		Name    string  `json:"name"`
		Score   float64 `json:"score"`
		Found   bool    `json:"found"`
	}
)

// Defaults applied by normalize.
const (
	defaultWorkers = 8
	defaultTimeout = 30 * time.Second
	// Cosine scores are bounded by one; allow for rounding.
	scoreTolerance = 1e-9
)

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}
