// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for event dates.
const DateLayout = "2006-01-02"

// Event is a listed event. Description feeds the similarity corpus.
type Event struct {
	ID          int64     `json:"event_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// Key returns the event id in the string form used by the ranker.
func (e Event) Key() string { return strconv.FormatInt(e.ID, 10) }

// Text returns the description, or the name when the description is blank.
func (e Event) Text() string {
	if strings.TrimSpace(e.Description) == "" {
		return e.Name
	}
	return e.Description
}

// User is a registrant with a single current interest.
type User struct {
	ID       int64  `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Interest string `json:"interests"`
}

// Notification is one delivery handed to the notification sink.
type Notification struct {
	ID                string    // unique delivery id
	UserID            int64     // recipient user
	Recipient         string    // recipient email address
	Event             Event     // event being announced
	PredictedInterest string    // forecast attached to the message, may be empty
	CreatedAt         time.Time // when the notification was produced
}

// DedupeKey identifies a (user, event) pair so it is announced once.
func (n Notification) DedupeKey() string {
	return strconv.FormatInt(n.UserID, 10) + ":" + strconv.FormatInt(n.Event.ID, 10)
}
