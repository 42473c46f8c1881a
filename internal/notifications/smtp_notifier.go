package notifications

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/samber/oops"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPNotifier struct {
	cfg  SMTPConfig
	from mail.Address
	send SendFunc
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.In("notifications").Code("config_invalid").Errorf("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, oops.In("notifications").Code("config_invalid").With("from", cfg.From).Wrapf(err, "parse from address")
	}

	return &SMTPNotifier{cfg: cfg, from: *from, send: smtp.SendMail}, nil
}

// WithSendFunc swaps the transport, used by tests.
func (n *SMTPNotifier) WithSendFunc(fn SendFunc) *SMTPNotifier {
	n.send = fn
	return n
}

// Send delivers msg. net/smtp has no context support, so the call runs in a
// goroutine and Send returns when ctx is done even if the dial hangs.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return oops.In("notifications").Code("bad_recipient").With("to", msg.To).Wrap(err)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	raw := n.render(*to, msg)

	done := make(chan error, 1)
	go func() {
		done <- n.send(addr, auth, n.from.Address, []string{to.Address}, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return oops.In("notifications").Code("smtp_failed").With("addr", addr, "to", to.Address).Wrap(err)
		}
		return nil
	case <-ctx.Done():
		return oops.In("notifications").Code("smtp_timeout").With("addr", addr).Wrap(ctx.Err())
	}
}

func (n *SMTPNotifier) render(to mail.Address, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
