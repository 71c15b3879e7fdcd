package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/moby/locker"

	"travelmate/internal/domain"
)

const maxNotifyBackoff = 30 * time.Second

// Dispatcher turns domain events from the rest of the platform into durable
// notifications and pushes them to the recipient's live connections.
type Dispatcher struct {
	notifications *NotificationService
	presence      Presence
	locks         *locker.Locker
	log           *slog.Logger

	maxAttempts int
	backoff     time.Duration
}

func NewDispatcher(
	notifications *NotificationService,
	presence Presence,
	maxAttempts int,
	backoff time.Duration,
	log *slog.Logger,
) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Dispatcher{
		notifications: notifications,
		presence:      presence,
		locks:         locker.New(),
		log:           log,
		maxAttempts:   maxAttempts,
		backoff:       backoff,
	}
}

var _ Notifier = (*Dispatcher)(nil)

// Notify persists the notification, retrying transient store failures with
// exponential backoff, and then pushes it to every live connection of the
// recipient. Notifications for one recipient are persisted and pushed in
// the same order.
func (d *Dispatcher) Notify(ctx context.Context, in NotificationInput) (*domain.Notification, error) {
	n, err := d.notifications.build(in)
	if err != nil {
		return nil, err
	}

	d.locks.Lock(n.RecipientID)
	defer d.locks.Unlock(n.RecipientID)

	if err := d.persist(ctx, n); err != nil {
		d.log.Error("notification dropped",
			"recipient_id", n.RecipientID, "type", n.Type, "related_id", n.RelatedID, "error", err)
		return nil, err
	}

	delivered := d.presence.SendToUser(n.RecipientID, domain.Event{Type: domain.EventNotification, Payload: n})
	d.log.Debug("notification dispatched", "notification_id", n.ID, "recipient_id", n.RecipientID, "live", delivered)
	return n, nil
}

func (d *Dispatcher) persist(ctx context.Context, n *domain.Notification) error {
	attempts := 0
	store := func() (struct{}, error) {
		attempts++
		err := d.notifications.notifications.Create(ctx, n)
		switch {
		case err == nil:
			return struct{}{}, nil
		// An earlier attempt may have committed before its error surfaced.
		case attempts > 1 && errors.Is(err, domain.ErrConflict):
			return struct{}{}, nil
		case errors.Is(err, domain.ErrTransientStore):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}

	_, err := backoff.Retry(ctx, store,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval: d.backoff,
			Multiplier:      2,
			MaxInterval:     maxNotifyBackoff,
		}),
		backoff.WithMaxTries(uint(d.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			d.log.Warn("notification persist failed, retrying",
				"recipient_id", n.RecipientID, "attempt", attempts, "backoff", wait, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("persist notification after %d attempt(s): %w", attempts, err)
	}
	return nil
}
