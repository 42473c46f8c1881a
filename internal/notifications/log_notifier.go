package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// LogNotifier writes messages to the logger instead of delivering them.
// Delay and Fail simulate a slow or unavailable provider in dev.
type LogNotifier struct {
	log   *slog.Logger
	Delay time.Duration
	Fail  bool
}

func NewLogNotifier(log *slog.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.Fail {
		return oops.In("notifications").Code("provider_down").With("to", msg.To).Errorf("provider down (simulated)")
	}

	// the body carries the raw reset token, keep it out of info logs
	n.log.InfoContext(ctx, "notification.sent", "to", msg.To, "subject", msg.Subject)
	n.log.DebugContext(ctx, "notification.body", "to", msg.To, "body", msg.Body)
	return nil
}
