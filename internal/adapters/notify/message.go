// Package notify delivers event announcements to users.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/eventmatch/internal/domain/model"
)

// Subject is the subject line of every announcement.
const Subject = "Recommended Event Based on Your Interests"

// Sink delivers a single notification.
type Sink interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n model.Notification) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, n model.Notification) error { return f(ctx, n) }

// Body renders the plain-text announcement for n.
func Body(n model.Notification) string {
	date := ""
	if !n.Event.Date.IsZero() {
		date = n.Event.Date.Format(model.DateLayout)
	}

	var b strings.Builder
	b.WriteString("Dear User,\n\n")
	b.WriteString("We have found an event that matches your interests:\n\n")
	fmt.Fprintf(&b, "Event Name: %s\n", n.Event.Name)
	fmt.Fprintf(&b, "Description: %s\n", n.Event.Description)
	fmt.Fprintf(&b, "Date: %s\n\n", date)
	b.WriteString("Best regards,\nEvent Recommendation Team")
	return b.String()
}

// ValidateEmail performs a light syntactic check of an address.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email address is required: %w", ErrInvalidRecipient)
	}
	if strings.ContainsAny(email, " \r\n<>") {
		return fmt.Errorf("invalid email address format %q: %w", email, ErrInvalidRecipient)
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid email address format %q: %w", email, ErrInvalidRecipient)
	}
	if !strings.Contains(parts[1], ".") {
		return fmt.Errorf("invalid email domain %q: %w", parts[1], ErrInvalidRecipient)
	}
	return nil
}
