package scheduler

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/probe"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/tlsprobe"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/tracker"
)

// EventSink receives alert decisions; implemented by notify.Notifier.
type EventSink interface {
	Notify(ctx context.Context, target *domain.Target, ev tracker.Event) (int, error)
}

// Defaults applied to seeded targets and to targets with zeroed fields.
type Defaults struct {
	RefreshSeconds int
	TimeoutSeconds int
	SSLExpiryDays  int
}

// Scheduler drives the whole engine: every tick it re-seeds configured
// targets, finds the ones that are due, and dispatches one concurrent
// check per free target. One failing target never affects the tick.
type Scheduler struct {
	log      *zap.Logger
	targets  repo.TargetStore
	stats    repo.StatStore
	checker  probe.Checker
	fetcher  tlsprobe.Fetcher
	state    *tracker.StateTracker
	ssl      *tracker.SslTracker
	sink     EventSink
	inflight *InFlight

	tick     time.Duration
	seeds    []string
	defaults Defaults

	now func() time.Time
	wg  sync.WaitGroup
}

func New(
	log *zap.Logger,
	targets repo.TargetStore,
	stats repo.StatStore,
	checker probe.Checker,
	fetcher tlsprobe.Fetcher,
	state *tracker.StateTracker,
	ssl *tracker.SslTracker,
	sink EventSink,
	inflight *InFlight,
	tick time.Duration,
	seeds []string,
	defaults Defaults,
) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	if defaults.RefreshSeconds <= 0 {
		defaults.RefreshSeconds = 60
	}
	if defaults.TimeoutSeconds <= 0 {
		defaults.TimeoutSeconds = 30
	}
	if defaults.SSLExpiryDays <= 0 {
		defaults.SSLExpiryDays = 30
	}
	return &Scheduler{
		log:      log,
		targets:  targets,
		stats:    stats,
		checker:  checker,
		fetcher:  fetcher,
		state:    state,
		ssl:      ssl,
		sink:     sink,
		inflight: inflight,
		tick:     tick,
		seeds:    seeds,
		defaults: defaults,
		now:      time.Now,
	}
}

// Run seeds, backfills, then ticks until ctx is cancelled. It waits for
// in-flight checks before returning.
func (s *Scheduler) Run(ctx context.Context) {
	s.seed(ctx)
	s.Backfill(ctx)

	t := time.NewTicker(s.tick)
	defer t.Stop()

	s.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("scheduler_stopped")
			return
		case <-t.C:
			s.runTick(ctx)
		}
	}
}

// Backfill re-emits events for ongoing conditions so a restart during an
// outage or an invalid-certificate period cannot drop alerting. The
// dedup keys make re-emission harmless.
func (s *Scheduler) Backfill(ctx context.Context) {
	rows, err := s.targets.ListEnabled(ctx)
	if err != nil {
		s.log.Warn("backfill_list_error", zap.Error(err))
		return
	}
	for i := range rows {
		t := &rows[i]
		s.applyDefaults(t)

		ev, err := s.state.Backfill(ctx, t.ID)
		if err != nil {
			s.log.Warn("backfill_state_error", zap.Int64("target_id", t.ID), zap.Error(err))
		} else if ev != nil {
			s.deliver(ctx, t, *ev)
		}

		evs, err := s.ssl.Backfill(ctx, t)
		if err != nil {
			s.log.Warn("backfill_ssl_error", zap.Int64("target_id", t.ID), zap.Error(err))
			continue
		}
		for _, ev := range evs {
			s.deliver(ctx, t, ev)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	s.seed(ctx)

	runID := uuid.NewString()[:8]
	now := s.now().Unix()

	rows, err := s.targets.ListEnabled(ctx)
	if err != nil {
		s.log.Warn("tick_list_error", zap.String("run", runID), zap.Error(err))
		return
	}
	for i := range rows {
		t := rows[i]
		s.applyDefaults(&t)

		due := now-t.LastCheckedUnix >= int64(t.RefreshSeconds)
		if !due || !s.inflight.TryAcquire(t.ID) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.inflight.Release(t.ID)
			s.performCheck(ctx, &t, runID)
		}()
	}
}

// performCheck runs the full pipeline for one target. Store failures
// abandon the remaining steps for this cycle; nothing propagates.
//
// A dispatched check always runs to completion: the only deadline on the
// probe is the per-target timeout. Shutdown drains via wg.Wait in Run, so
// the run context is detached here — a cancelled probe would otherwise be
// recorded as a down check for a healthy target.
func (s *Scheduler) performCheck(ctx context.Context, t *domain.Target, runID string) {
	ctx = context.WithoutCancel(ctx)
	log := s.log.With(
		zap.String("run", runID),
		zap.String("site", t.Name),
		zap.String("url", t.URL),
	)
	now := s.now().UTC()
	nowUnix := now.Unix()

	prev, err := s.stats.LastStat(ctx, t.ID)
	if err != nil {
		log.Warn("check_prev_error", zap.Error(err))
		return
	}
	var prevUp *bool
	if prev != nil {
		prevUp = &prev.Up
	}

	if err := s.targets.MarkChecked(ctx, t.ID, nowUnix); err != nil {
		log.Warn("check_mark_error", zap.Error(err))
		return
	}

	cctx, cancel := context.WithTimeout(ctx, time.Duration(t.TimeoutSeconds)*time.Second)
	out := s.checker.Check(cctx, t.URL)
	cancel()

	rec := &domain.CheckRecord{
		TargetID:      t.ID,
		Up:            out.Up,
		CheckedAt:     now,
		CheckedAtUnix: nowUnix,
		LatencyMS:     out.LatencyMS,
		StatusCode:    out.StatusCode,
		Response:      out.Excerpt,
	}
	if _, err := s.stats.AppendStat(ctx, rec); err != nil {
		log.Warn("check_append_error", zap.Error(err))
		return
	}

	if out.Up {
		log.Info("check_up", zap.Int("http", out.StatusCode), zap.Int64("ms", out.LatencyMS))
		if err := s.targets.MarkUp(ctx, t.ID, now, nowUnix); err != nil {
			log.Warn("check_mark_up_error", zap.Error(err))
			return
		}
	} else {
		log.Info("check_down", zap.Int("http", out.StatusCode), zap.Int64("ms", out.LatencyMS))
		if err := s.targets.MarkDown(ctx, t.ID, now, nowUnix); err != nil {
			log.Warn("check_mark_down_error", zap.Error(err))
			return
		}
	}

	ev, err := s.state.Evaluate(ctx, prevUp, rec)
	if err != nil {
		log.Warn("check_evaluate_error", zap.Error(err))
		return
	}
	if ev != nil {
		s.deliver(ctx, t, *ev)
	}

	if strings.HasPrefix(strings.ToLower(t.URL), "https:") {
		info := s.fetcher.Fetch(ctx, t.URL)
		evs, err := s.ssl.Evaluate(ctx, t, info)
		if err != nil {
			log.Warn("check_ssl_error", zap.Error(err))
			return
		}
		for _, ev := range evs {
			s.deliver(ctx, t, ev)
		}
	} else {
		if err := s.targets.SetSSLDaysRemaining(ctx, t.ID, nil); err != nil {
			log.Warn("check_ssl_clear_error", zap.Error(err))
		}
	}
}

func (s *Scheduler) deliver(ctx context.Context, t *domain.Target, ev tracker.Event) {
	if _, err := s.sink.Notify(ctx, t, ev); err != nil {
		s.log.Warn("notify_error",
			zap.Int64("target_id", t.ID),
			zap.String("key", ev.ChangeKey),
			zap.Error(err),
		)
	}
}

// seed registers externally configured targets; existing URLs are left
// untouched, so running it every tick is cheap and idempotent.
func (s *Scheduler) seed(ctx context.Context) {
	for _, raw := range s.seeds {
		t := &domain.Target{
			URL:            raw,
			Name:           nameFromURL(raw),
			Enabled:        true,
			RefreshSeconds: s.defaults.RefreshSeconds,
			TimeoutSeconds: s.defaults.TimeoutSeconds,
			SSLExpiryDays:  s.defaults.SSLExpiryDays,
		}
		if err := s.targets.Upsert(ctx, t); err != nil {
			s.log.Warn("seed_error", zap.String("url", raw), zap.Error(err))
		}
	}
}

func (s *Scheduler) applyDefaults(t *domain.Target) {
	if t.RefreshSeconds <= 0 {
		t.RefreshSeconds = s.defaults.RefreshSeconds
	}
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = s.defaults.TimeoutSeconds
	}
	if t.SSLExpiryDays <= 0 {
		t.SSLExpiryDays = s.defaults.SSLExpiryDays
	}
}

func nameFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.IndexByte(trimmed, '/'); i > 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return raw
	}
	return trimmed
}
