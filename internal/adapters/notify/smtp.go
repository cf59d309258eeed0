package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/eventmatch/internal/domain/model"
)

const defaultDialTimeout = 30 * time.Second

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool
}

// SMTPMailer sends announcements through an SMTP relay.
type SMTPMailer struct {
	cfg         SMTPConfig
	dialTimeout time.Duration
}

// NewSMTPMailer validates cfg and returns a mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp host/port: %w", ErrNotConfigured)
	}
	if err := ValidateEmail(cfg.From); err != nil {
		return nil, fmt.Errorf("smtp sender: %w", err)
	}
	return &SMTPMailer{cfg: cfg, dialTimeout: defaultDialTimeout}, nil
}

// Deliver sends n to its recipient.
func (m *SMTPMailer) Deliver(ctx context.Context, n model.Notification) error {
	if err := ValidateEmail(n.Recipient); err != nil {
		return err
	}
	return m.send(ctx, n.Recipient, m.buildMessage(n))
}

func (m *SMTPMailer) buildMessage(n model.Notification) string {
	fromName := m.cfg.FromName
	if fromName == "" {
		fromName = "Event Recommendation Team"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", fromName, m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", n.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", Subject)
	if n.ID != "" {
		fmt.Fprintf(&msg, "X-Notification-ID: %s\r\n", n.ID)
	}
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(Body(n), "\n", "\r\n"))
	msg.WriteString("\r\n")
	return msg.String()
}

func (m *SMTPMailer) send(ctx context.Context, to, msg string) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if m.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// The message is accepted once DATA closes; a failed QUIT is not a delivery failure.
	_ = client.Quit()
	return nil
}
