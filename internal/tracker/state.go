package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/timeutil"
)

// maxStreakWalk caps the backward history walk. Hitting the cap only
// degrades the message (duration reported as unknown), never dedup.
const maxStreakWalk = 100000

type StateTracker struct {
	stats repo.StatStore
	log   *zap.Logger
}

func NewStateTracker(stats repo.StatStore, log *zap.Logger) *StateTracker {
	return &StateTracker{stats: stats, log: log}
}

// Evaluate classifies the transition for a freshly appended record.
// prevUp is the state of the record preceding rec, nil when rec is the
// target's first check ever. Returns nil when nothing changed.
func (t *StateTracker) Evaluate(ctx context.Context, prevUp *bool, rec *domain.CheckRecord) (*Event, error) {
	key := fmt.Sprintf("stat:%d", rec.ID)

	if prevUp == nil {
		if rec.Up {
			return nil, nil
		}
		return &Event{
			ChangeType: "uptime",
			ChangeKey:  key,
			Message:    fmt.Sprintf("FIRST CHECK: Site is DOWN (HTTP %d, %dms)", rec.StatusCode, rec.LatencyMS),
			Subject:    "Website is DOWN",
		}, nil
	}
	if *prevUp == rec.Up {
		return nil, nil
	}

	if !rec.Up {
		return &Event{
			ChangeType: "uptime",
			ChangeKey:  key,
			Message:    fmt.Sprintf("Site is DOWN (HTTP %d, %dms)", rec.StatusCode, rec.LatencyMS),
			Subject:    "Website is DOWN",
		}, nil
	}

	// Recovery: report how long the down streak lasted when history
	// still holds its start.
	extra := ""
	startUnix, err := t.downStreakStartUnix(ctx, rec.TargetID, rec.ID)
	if err != nil {
		return nil, err
	}
	if startUnix != 0 {
		d := time.Duration(rec.CheckedAtUnix-startUnix) * time.Second
		extra = fmt.Sprintf(" It was down for %s.", timeutil.FormatDuration(d))
	}
	return &Event{
		ChangeType: "uptime",
		ChangeKey:  key,
		Message:    fmt.Sprintf("Site is UP (HTTP %d, %dms).%s", rec.StatusCode, rec.LatencyMS, extra),
		Subject:    "Website is UP",
	}, nil
}

// Backfill re-derives the down event for a target whose latest record is
// down, keyed to the streak's first record so a restart during an outage
// cannot double-notify.
func (t *StateTracker) Backfill(ctx context.Context, targetID int64) (*Event, error) {
	latest, err := t.stats.LastStat(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Up {
		return nil, nil
	}
	startID, err := t.downStreakStartID(ctx, latest)
	if err != nil {
		return nil, err
	}
	return &Event{
		ChangeType: "uptime",
		ChangeKey:  fmt.Sprintf("stat:%d", startID),
		Message:    fmt.Sprintf("Site is DOWN (HTTP %d, latest check)", latest.StatusCode),
		Subject:    "Website is DOWN",
	}, nil
}

// downStreakStartUnix walks backward from an up record and returns the
// checked-at of the first record in the preceding down streak, or 0
// when the previous record was not down / history is exhausted.
func (t *StateTracker) downStreakStartUnix(ctx context.Context, targetID, upID int64) (int64, error) {
	prev, err := t.stats.StatBefore(ctx, targetID, upID)
	if err != nil {
		return 0, err
	}
	if prev == nil || prev.Up {
		return 0, nil
	}
	start := prev
	for i := 0; i < maxStreakWalk; i++ {
		prev, err = t.stats.StatBefore(ctx, targetID, start.ID)
		if err != nil {
			return 0, err
		}
		if prev == nil || prev.Up {
			return start.CheckedAtUnix, nil
		}
		start = prev
	}
	t.log.Warn("streak_walk_capped", zap.Int64("target_id", targetID))
	return 0, nil
}

// downStreakStartID walks backward from a down record to the first
// record of its streak.
func (t *StateTracker) downStreakStartID(ctx context.Context, latest *domain.CheckRecord) (int64, error) {
	start := latest
	for i := 0; i < maxStreakWalk; i++ {
		prev, err := t.stats.StatBefore(ctx, latest.TargetID, start.ID)
		if err != nil {
			return 0, err
		}
		if prev == nil || prev.Up {
			return start.ID, nil
		}
		start = prev
	}
	t.log.Warn("streak_walk_capped", zap.Int64("target_id", latest.TargetID))
	return start.ID, nil
}
