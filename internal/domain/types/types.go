// Package types contains common types used across the application
package types

// Portfolio is one row of a broadcast report: a user who matched a new event.
type Portfolio struct {
	UserID            int64   `json:"user_id"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	EventSentTo       string  `json:"event_email_sent_to"`
	Interests         string  `json:"interests"`
	PastEvents        []int64 `json:"past_events"`
	Similarity        float64 `json:"similarity"`
	PredictedInterest string  `json:"predicted_interest,omitempty"`
	PredictionError   string  `json:"prediction_error,omitempty"`
	Queued            bool    `json:"queued"`
}

// Recommendation is the best unseen event for a user.
type Recommendation struct {
	UserID  int64   `json:"user_id"`
	Query   string  `json:"query"`
	EventID int64   `json:"event_id"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Found   bool    `json:"found"`
}

// Prediction is the forecast interest for a user.
type Prediction struct {
	UserID   int64  `json:"user_id"`
	Seed     string `json:"seed"`
	Interest string `json:"predicted_interest"`
	Score    int    `json:"score"`
}
