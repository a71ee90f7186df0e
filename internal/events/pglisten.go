package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PGListener resets download periods from NOTIFY membership_payment.
type PGListener struct {
	listener *pq.Listener
	handler  PaymentHandler
	logger   *slog.Logger
}

// NewPGListener opens a dedicated LISTEN connection to dsn.
func NewPGListener(dsn string, handler PaymentHandler, logger *slog.Logger) (*PGListener, error) {
	logger = logger.With("component", "pg_listener", "channel", ChannelMembershipPayment)

	report := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.Warn("listener connection problem", "event", ev, "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("listener reconnected")
		}
	}

	l := pq.NewListener(dsn, 10*time.Second, time.Minute, report)
	if err := l.Listen(ChannelMembershipPayment); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen %s: %w", ChannelMembershipPayment, err)
	}

	return &PGListener{listener: l, handler: handler, logger: logger}, nil
}

// Run dispatches notifications until ctx is cancelled, then closes the
// connection.
func (p *PGListener) Run(ctx context.Context) error {
	defer p.listener.Close()

	p.logger.Info("listening for payment notifications")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-p.listener.Notify:
			// nil after a reconnect; notifications sent while disconnected are lost.
			if n == nil {
				p.logger.Warn("listener reconnected, notifications may have been missed")
				continue
			}
			p.notify(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			go func() {
				if err := p.listener.Ping(); err != nil {
					p.logger.Warn("listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (p *PGListener) notify(ctx context.Context, payload string) {
	event, err := DecodePayment([]byte(payload), SourcePostgres)
	if err != nil {
		p.logger.Error("discarding malformed notification", "error", err)
		return
	}
	if err := p.handler.OnPaymentRecorded(ctx, event); err != nil {
		p.logger.Error("payment notification failed",
			"payment_id", event.PaymentID,
			"user_id", event.UserID,
			"error", err,
		)
	}
}
