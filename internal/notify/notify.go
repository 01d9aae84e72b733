package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/tracker"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(to, subject, body string) error
}

// Broadcaster mirrors an alert to a shared channel (e.g., Slack).
type Broadcaster interface {
	Send(ctx context.Context, title, text string) error
}

// Notifier resolves subscribers, records each notification at most once
// per change key, and delivers mail for newly recorded ones. Recording
// and delivery are separate steps: a failed delivery is logged and the
// record stays, so the alert is never re-sent for the same change.
type Notifier struct {
	store     repo.NotificationStore
	sender    Sender
	broadcast Broadcaster
	log       *zap.Logger
	now       func() time.Time
}

func New(store repo.NotificationStore, sender Sender, broadcast Broadcaster, log *zap.Logger) *Notifier {
	return &Notifier{store: store, sender: sender, broadcast: broadcast, log: log, now: time.Now}
}

// Notify fans the event out to the target's enabled subscribers and
// returns how many notifications were newly recorded.
func (n *Notifier) Notify(ctx context.Context, target *domain.Target, ev tracker.Event) (int, error) {
	users, err := n.store.SubscribersFor(ctx, target.ID)
	if err != nil {
		return 0, fmt.Errorf("list subscribers: %w", err)
	}

	subject := ev.Subject
	if subject == "" {
		subject = fmt.Sprintf("[PassieUptimeRobot] %s", target.Name)
	}
	n.log.Info("notify_scan",
		zap.String("site", target.Name),
		zap.Int("users", len(users)),
		zap.String("type", ev.ChangeType),
		zap.String("key", ev.ChangeKey),
	)

	if len(users) == 0 {
		n.log.Debug("notify_no_subscribers",
			zap.String("site", target.Name),
			zap.String("key", ev.ChangeKey),
		)
		return 0, nil
	}

	now := n.now().UTC()
	recorded := 0
	for _, u := range users {
		created, err := n.store.InsertNotification(ctx, &domain.Notification{
			UserID:     u.ID,
			TargetID:   target.ID,
			ChangeType: ev.ChangeType,
			ChangeKey:  ev.ChangeKey,
			Message:    ev.Message,
			CreatedAt:  now,
		})
		if err != nil {
			n.log.Error("notify_record_failed",
				zap.String("email", u.Email),
				zap.String("key", ev.ChangeKey),
				zap.Error(err),
			)
			continue
		}
		if !created {
			n.log.Info("notify_skip_duplicate",
				zap.String("email", u.Email),
				zap.String("type", ev.ChangeType),
				zap.String("key", ev.ChangeKey),
			)
			continue
		}
		recorded++

		body := fmt.Sprintf("%s (%s)\n%s\nKey: %s\nTime: %s",
			target.Name, target.URL, ev.Message, ev.ChangeKey,
			now.Format("2006-01-02 15:04:05"))
		if err := n.sender.Send(u.Email, subject, body); err != nil {
			n.log.Error("email_failed", zap.String("email", u.Email), zap.Error(err))
		} else {
			n.log.Info("email_sent",
				zap.String("email", u.Email),
				zap.String("type", ev.ChangeType),
				zap.String("key", ev.ChangeKey),
			)
		}
	}

	if recorded > 0 && n.broadcast != nil {
		text := fmt.Sprintf("%s (%s)\n%s", target.Name, target.URL, ev.Message)
		if err := n.broadcast.Send(ctx, subject, text); err != nil {
			n.log.Warn("broadcast_failed", zap.String("key", ev.ChangeKey), zap.Error(err))
		}
	}
	return recorded, nil
}
