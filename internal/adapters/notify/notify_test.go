package notify_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/eventmatch/internal/adapters/notify"
	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func sample() model.Notification {
	return model.Notification{
		ID:        "n-1",
		UserID:    7,
		Recipient: "ada@example.com",
		Event: model.Event{
			ID:          3,
			Name:        "Live Jazz Concert",
			Description: "An evening of jazz",
			Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestBody(t *testing.T) {
	Convey("Given a notification", t, func() {
		body := notify.Body(sample())

		Convey("Then the body lists the event details", func() {
			So(body, ShouldStartWith, "Dear User,")
			So(body, ShouldContainSubstring, "Event Name: Live Jazz Concert\n")
			So(body, ShouldContainSubstring, "Description: An evening of jazz\n")
			So(body, ShouldContainSubstring, "Date: 2025-06-01\n")
			So(body, ShouldEndWith, "Event Recommendation Team")
		})
	})
}

func TestValidateEmail(t *testing.T) {
	Convey("Given candidate addresses", t, func() {
		Convey("Then well-formed ones pass", func() {
			So(notify.ValidateEmail("ada@example.com"), ShouldBeNil)
		})

		Convey("Then malformed ones are invalid recipients", func() {
			for _, bad := range []string{"", "ada", "@example.com", "ada@", "ada@localhost", "a b@example.com", "a@b@c.com"} {
				So(errors.Is(notify.ValidateEmail(bad), notify.ErrInvalidRecipient), ShouldBeTrue)
			}
		})
	})
}

func TestLogSink(t *testing.T) {
	Convey("Given a log sink", t, func() {
		sink := notify.NewLogSink()

		Convey("Then valid notifications are accepted", func() {
			So(sink.Deliver(context.Background(), sample()), ShouldBeNil)
		})

		Convey("Then invalid recipients are refused", func() {
			n := sample()
			n.Recipient = "nobody"
			So(errors.Is(sink.Deliver(context.Background(), n), notify.ErrInvalidRecipient), ShouldBeTrue)
		})
	})
}

func TestGuard(t *testing.T) {
	Convey("Given a guard over a failing sink", t, func() {
		var mu sync.Mutex
		calls := 0
		failing := notify.SinkFunc(func(context.Context, model.Notification) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return errors.New("relay down")
		})
		g := notify.NewGuard(failing,
			notify.WithBreakerName("test-guard"),
			notify.WithFailureThreshold(2),
			notify.WithBreakerTimeout(time.Hour),
			notify.WithRateLimit(0, 1),
		)
		ctx := context.Background()

		Convey("When failures reach the threshold", func() {
			So(g.Deliver(ctx, sample()), ShouldNotBeNil)
			So(g.Deliver(ctx, sample()), ShouldNotBeNil)

			Convey("Then the breaker opens and stops calling the sink", func() {
				err := g.Deliver(ctx, sample())
				So(errors.Is(err, notify.ErrCircuitOpen), ShouldBeTrue)
				So(g.State(), ShouldEqual, "open")
				mu.Lock()
				So(calls, ShouldEqual, 2)
				mu.Unlock()
			})
		})

		Convey("When the recipient is invalid", func() {
			n := sample()
			n.Recipient = ""
			err := g.Deliver(ctx, n)

			Convey("Then the sink is never reached", func() {
				So(errors.Is(err, notify.ErrInvalidRecipient), ShouldBeTrue)
				So(calls, ShouldEqual, 0)
				So(g.State(), ShouldEqual, "closed")
			})
		})
	})

	Convey("Given a rate-limited guard and a cancelled context", t, func() {
		ok := notify.SinkFunc(func(context.Context, model.Notification) error { return nil })
		g := notify.NewGuard(ok, notify.WithBreakerName("test-limit"), notify.WithRateLimit(0.001, 1))
		So(g.Deliver(context.Background(), sample()), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then waiting for a token fails", func() {
			So(g.Deliver(ctx, sample()), ShouldNotBeNil)
		})
	})
}

// fakeSMTP accepts one message and records the DATA payload.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt string
	data string
	done chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeSMTP{ln: ln, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.mu.Lock()
			s.from = strings.TrimSpace(line[len("MAIL FROM:"):])
			s.mu.Unlock()
			reply("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = strings.TrimSpace(line[len("RCPT TO:"):])
			s.mu.Unlock()
			reply("250 ok")
		case cmd == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = b.String()
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func TestSMTPMailer(t *testing.T) {
	Convey("Given an SMTP relay", t, func() {
		srv := startFakeSMTP(t)
		host, portStr, _ := net.SplitHostPort(srv.ln.Addr().String())
		port, err := strconv.Atoi(portStr)
		So(err, ShouldBeNil)
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host: host, Port: port, From: "events@example.com", FromName: "Events",
		})
		So(err, ShouldBeNil)

		Convey("When delivering a notification", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			So(m.Deliver(ctx, sample()), ShouldBeNil)
			<-srv.done

			Convey("Then the envelope and message are sent", func() {
				srv.mu.Lock()
				defer srv.mu.Unlock()
				So(srv.from, ShouldContainSubstring, "events@example.com")
				So(srv.rcpt, ShouldContainSubstring, "ada@example.com")
				So(srv.data, ShouldContainSubstring, "Subject: "+notify.Subject)
				So(srv.data, ShouldContainSubstring, "From: Events <events@example.com>")
				So(srv.data, ShouldContainSubstring, "Event Name: Live Jazz Concert")
			})
		})
	})

	Convey("Given incomplete settings", t, func() {
		_, noHost := notify.NewSMTPMailer(notify.SMTPConfig{Port: 25, From: "a@example.com"})
		_, badFrom := notify.NewSMTPMailer(notify.SMTPConfig{Host: "localhost", Port: 25, From: "nobody"})

		Convey("Then construction fails", func() {
			So(errors.Is(noHost, notify.ErrNotConfigured), ShouldBeTrue)
			So(errors.Is(badFrom, notify.ErrInvalidRecipient), ShouldBeTrue)
		})
	})

	Convey("Given a mailer and a bad recipient", t, func() {
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@example.com"})
		So(err, ShouldBeNil)
		n := sample()
		n.Recipient = "broken"

		Convey("Then nothing is dialled", func() {
			So(errors.Is(m.Deliver(context.Background(), n), notify.ErrInvalidRecipient), ShouldBeTrue)
		})
	})
}
