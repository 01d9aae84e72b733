package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/timeutil"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/tlsprobe"
)

type SslTracker struct {
	targets repo.TargetStore
	ssl     repo.SslStore
	log     *zap.Logger
	now     func() time.Time
}

func NewSslTracker(targets repo.TargetStore, ssl repo.SslStore, log *zap.Logger) *SslTracker {
	return &SslTracker{targets: targets, ssl: ssl, log: log, now: time.Now}
}

// Evaluate processes one certificate observation. A nil info means the
// fetch failed or the URL is not https: the cached day count is cleared
// and no event is produced. Otherwise the observation is compared to the
// latest stored snapshot and zero or more events come back (at most one
// change event plus at most one expiry alarm).
func (t *SslTracker) Evaluate(ctx context.Context, target *domain.Target, info *tlsprobe.Info) ([]Event, error) {
	if info == nil {
		if err := t.targets.SetSSLDaysRemaining(ctx, target.ID, nil); err != nil {
			return nil, fmt.Errorf("clear ssl days: %w", err)
		}
		return nil, nil
	}

	now := t.now().UTC()
	cur := snapshotFrom(target.ID, info, now)
	if err := t.targets.SetSSLDaysRemaining(ctx, target.ID, cur.DaysLeft); err != nil {
		return nil, fmt.Errorf("cache ssl days: %w", err)
	}

	latest, err := t.ssl.LatestSnapshot(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}

	var events []Event
	switch {
	case latest == nil:
		id, err := t.ssl.InsertSnapshot(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("insert snapshot: %w", err)
		}
		t.log.Info("ssl_initial_record",
			zap.Int64("target_id", target.ID),
			zap.Bool("valid", cur.Valid),
			zap.String("expires", expiresText(cur.NotAfter)),
		)
		if !cur.Valid {
			events = append(events, sslInvalidEvent(id, cur.NotAfter, cur.DaysLeft))
		}

	case latest.Tuple() == cur.Tuple():
		if err := t.ssl.TouchSnapshot(ctx, latest.ID, cur.DaysLeft, now); err != nil {
			return nil, fmt.Errorf("touch snapshot: %w", err)
		}

	default:
		id, err := t.ssl.InsertSnapshot(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("insert snapshot: %w", err)
		}
		t.log.Info("ssl_state_changed",
			zap.Int64("target_id", target.ID),
			zap.Bool("valid", cur.Valid),
			zap.String("expires", expiresText(cur.NotAfter)),
		)
		if cur.Valid {
			events = append(events, t.sslValidAgainEvent(ctx, target.ID, id, cur, now))
		} else {
			events = append(events, Event{
				ChangeType: "ssl",
				ChangeKey:  fmt.Sprintf("ssl:%d", id),
				Message: fmt.Sprintf("SSL changed: valid=0, expires=%s, days_left=%s",
					expiresText(cur.NotAfter), daysText(cur.DaysLeft)),
				Subject: "SSL is EXPIRED",
			})
		}
	}

	if ev := ExpiryAlarm(target, cur.Valid, cur.DaysLeft); ev != nil {
		events = append(events, *ev)
	}
	return events, nil
}

// Backfill re-derives events from the stored latest snapshot: the
// invalid alert when the certificate is currently invalid, and the
// expiry alarm either way.
func (t *SslTracker) Backfill(ctx context.Context, target *domain.Target) ([]Event, error) {
	latest, err := t.ssl.LatestSnapshot(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	var events []Event
	if !latest.Valid {
		events = append(events, sslInvalidEvent(latest.ID, latest.NotAfter, latest.DaysLeft))
	}
	if ev := ExpiryAlarm(target, latest.Valid, latest.DaysLeft); ev != nil {
		events = append(events, *ev)
	}
	return events, nil
}

// ExpiryAlarm fires when a valid certificate is within the target's
// threshold. The key carries the exact day count, so the alarm repeats
// on each later day but never twice for the same count.
func ExpiryAlarm(target *domain.Target, valid bool, daysLeft *int) *Event {
	if !valid || daysLeft == nil {
		return nil
	}
	threshold := target.SSLExpiryDays
	if threshold <= 0 {
		threshold = 30
	}
	d := *daysLeft
	if d < 0 || d > threshold {
		return nil
	}
	return &Event{
		ChangeType: "ssl_expiry",
		ChangeKey:  fmt.Sprintf("ssl_expiry:%d", d),
		Message:    fmt.Sprintf("SSL expires in %d day(s)", d),
		Subject:    fmt.Sprintf("SSL will expire in %d days", d),
	}
}

func (t *SslTracker) sslValidAgainEvent(ctx context.Context, targetID, snapshotID int64, cur *domain.CertSnapshot, now time.Time) Event {
	extra := ""
	lastInvalid, err := t.ssl.LatestInvalidSnapshot(ctx, targetID)
	if err != nil {
		t.log.Warn("ssl_last_invalid_lookup_failed", zap.Int64("target_id", targetID), zap.Error(err))
	} else if lastInvalid != nil {
		d := now.Sub(lastInvalid.CreatedAt)
		extra = fmt.Sprintf(" It was invalid for %s.", timeutil.FormatDuration(d))
	}
	return Event{
		ChangeType: "ssl",
		ChangeKey:  fmt.Sprintf("ssl:%d", snapshotID),
		Message: fmt.Sprintf("SSL changed: valid=1, expires=%s, days_left=%s.%s",
			expiresText(cur.NotAfter), daysText(cur.DaysLeft), extra),
		Subject: "SSL is WORKING",
	}
}

func sslInvalidEvent(snapshotID int64, notAfter *time.Time, daysLeft *int) Event {
	return Event{
		ChangeType: "ssl",
		ChangeKey:  fmt.Sprintf("ssl:%d", snapshotID),
		Message: fmt.Sprintf("SSL INVALID: expires=%s, days_left=%s",
			expiresText(notAfter), daysText(daysLeft)),
		Subject: "SSL is EXPIRED",
	}
}

func snapshotFrom(targetID int64, info *tlsprobe.Info, now time.Time) *domain.CertSnapshot {
	s := &domain.CertSnapshot{
		TargetID:      targetID,
		Valid:         info.Valid,
		IssuerCN:      info.IssuerCN,
		SubjectCN:     info.SubjectCN,
		Fingerprint:   domain.NormalizeFingerprint(info.Fingerprint),
		CreatedAt:     now,
		LastCheckedAt: now,
	}
	if !info.NotBefore.IsZero() {
		nb := info.NotBefore.UTC()
		s.NotBefore = &nb
	}
	if !info.NotAfter.IsZero() {
		na := info.NotAfter.UTC()
		s.NotAfter = &na
		s.DaysLeft = domain.DaysLeftAt(s.NotAfter, now)
	}
	return s
}

func expiresText(t *time.Time) string {
	if t == nil {
		return "n/a"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func daysText(d *int) string {
	if d == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *d)
}
