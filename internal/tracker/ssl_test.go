package tracker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo/memory"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/tlsprobe"
)

func sslFixture(t *testing.T) (*memory.Store, *SslTracker, *domain.Target, time.Time) {
	t.Helper()
	store := memory.New()
	tr := NewSslTracker(store, store, zap.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	target := &domain.Target{URL: "https://example.com", Name: "example", Enabled: true, SSLExpiryDays: 30}
	if err := store.Upsert(context.Background(), target); err != nil {
		t.Fatal(err)
	}
	return store, tr, target, now
}

func validInfo(now time.Time, daysOut int) *tlsprobe.Info {
	return &tlsprobe.Info{
		Valid:       true,
		NotBefore:   now.Add(-24 * time.Hour),
		NotAfter:    now.Add(time.Duration(daysOut) * 24 * time.Hour),
		IssuerCN:    "R11",
		SubjectCN:   "example.com",
		Fingerprint: "aa:bb:cc",
	}
}

func TestSslTracker_FetchFailureClearsDaysAndStaysQuiet(t *testing.T) {
	store, tr, target, _ := sslFixture(t)
	ctx := context.Background()

	days := 10
	if err := store.SetSSLDaysRemaining(ctx, target.ID, &days); err != nil {
		t.Fatal(err)
	}

	evs, err := tr.Evaluate(ctx, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 {
		t.Fatalf("fetch failure must not produce events, got %+v", evs)
	}
	got, _ := store.GetByID(ctx, target.ID)
	if got.SSLDaysRemaining != nil {
		t.Fatalf("cached days should be cleared, got %d", *got.SSLDaysRemaining)
	}
	if snap, _ := store.LatestSnapshot(ctx, target.ID); snap != nil {
		t.Fatal("no snapshot should be written on fetch failure")
	}
}

func TestSslTracker_InitialValidSnapshot(t *testing.T) {
	store, tr, target, now := sslFixture(t)
	ctx := context.Background()

	evs, err := tr.Evaluate(ctx, target, validInfo(now, 90))
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 {
		t.Fatalf("valid initial cert outside threshold: no events, got %+v", evs)
	}
	snap, _ := store.LatestSnapshot(ctx, target.ID)
	if snap == nil || !snap.Valid {
		t.Fatalf("want stored valid snapshot, got %+v", snap)
	}
	if snap.DaysLeft == nil || *snap.DaysLeft != 90 {
		t.Fatalf("want 90 days left, got %v", snap.DaysLeft)
	}
	got, _ := store.GetByID(ctx, target.ID)
	if got.SSLDaysRemaining == nil || *got.SSLDaysRemaining != 90 {
		t.Fatalf("target cache not updated: %v", got.SSLDaysRemaining)
	}
}

func TestSslTracker_InitialInvalidEmitsEvent(t *testing.T) {
	_, tr, target, now := sslFixture(t)
	info := validInfo(now, 90)
	info.Valid = false

	evs, err := tr.Evaluate(context.Background(), target, info)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 {
		t.Fatalf("want one invalid event, got %+v", evs)
	}
	ev := evs[0]
	if ev.ChangeType != "ssl" || ev.Subject != "SSL is EXPIRED" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !strings.HasPrefix(ev.ChangeKey, "ssl:") {
		t.Fatalf("want ssl: key, got %q", ev.ChangeKey)
	}
}

func TestSslTracker_UnchangedTupleOnlyTouches(t *testing.T) {
	store, tr, target, now := sslFixture(t)
	ctx := context.Background()

	if _, err := tr.Evaluate(ctx, target, validInfo(now, 90)); err != nil {
		t.Fatal(err)
	}
	first, _ := store.LatestSnapshot(ctx, target.ID)

	// Next day: same cert, one fewer day left.
	later := now.Add(24 * time.Hour)
	tr.now = func() time.Time { return later }
	evs, err := tr.Evaluate(ctx, target, validInfo(now, 90))
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 {
		t.Fatalf("unchanged tuple: no events, got %+v", evs)
	}
	snap, _ := store.LatestSnapshot(ctx, target.ID)
	if snap.ID != first.ID {
		t.Fatalf("unchanged tuple must not create a row: %d vs %d", snap.ID, first.ID)
	}
	if !snap.LastCheckedAt.Equal(later) {
		t.Fatalf("want refreshed LastCheckedAt, got %v", snap.LastCheckedAt)
	}
	if snap.DaysLeft == nil || *snap.DaysLeft != 89 {
		t.Fatalf("want refreshed days left 89, got %v", snap.DaysLeft)
	}
}

func TestSslTracker_ChangeToInvalidAndBack(t *testing.T) {
	store, tr, target, now := sslFixture(t)
	ctx := context.Background()

	if _, err := tr.Evaluate(ctx, target, validInfo(now, 90)); err != nil {
		t.Fatal(err)
	}

	// Renewed with a different fingerprint but invalid chain.
	bad := validInfo(now, 90)
	bad.Valid = false
	bad.Fingerprint = "dd:ee:ff"
	evs, err := tr.Evaluate(ctx, target, bad)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Subject != "SSL is EXPIRED" {
		t.Fatalf("want invalid-change event, got %+v", evs)
	}
	if !strings.Contains(evs[0].Message, "valid=0") {
		t.Fatalf("want valid=0 in message, got %q", evs[0].Message)
	}

	// Two hours later it is valid again; the event reports how long it
	// was broken.
	later := now.Add(2 * time.Hour)
	tr.now = func() time.Time { return later }
	good := validInfo(now, 90)
	good.Fingerprint = "11:22:33"
	evs, err = tr.Evaluate(ctx, target, good)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Subject != "SSL is WORKING" {
		t.Fatalf("want valid-again event, got %+v", evs)
	}
	if !strings.Contains(evs[0].Message, "It was invalid for 2h.") {
		t.Fatalf("want invalid duration, got %q", evs[0].Message)
	}

	// Three rows total, newest valid.
	snap, _ := store.LatestSnapshot(ctx, target.ID)
	if !snap.Valid {
		t.Fatalf("latest snapshot should be valid, got %+v", snap)
	}
}

func TestSslTracker_ExpiryAlarmPerDayCount(t *testing.T) {
	target := &domain.Target{ID: 1, SSLExpiryDays: 30}

	ten := 10
	ev := ExpiryAlarm(target, true, &ten)
	if ev == nil || ev.ChangeKey != "ssl_expiry:10" {
		t.Fatalf("want ssl_expiry:10, got %+v", ev)
	}
	// The same day count yields the same key: the dedup store, not the
	// alarm, suppresses the repeat.
	again := ExpiryAlarm(target, true, &ten)
	if again == nil || again.ChangeKey != ev.ChangeKey {
		t.Fatalf("same day count must produce the same key, got %+v", again)
	}
	nine := 9
	next := ExpiryAlarm(target, true, &nine)
	if next == nil || next.ChangeKey != "ssl_expiry:9" {
		t.Fatalf("want distinct key for 9 days, got %+v", next)
	}

	over := 31
	if ev := ExpiryAlarm(target, true, &over); ev != nil {
		t.Fatalf("31 days with threshold 30 must not fire, got %+v", ev)
	}
	neg := -1
	if ev := ExpiryAlarm(target, true, &neg); ev != nil {
		t.Fatalf("negative days must not fire, got %+v", ev)
	}
	if ev := ExpiryAlarm(target, false, &ten); ev != nil {
		t.Fatalf("invalid cert must not fire the expiry alarm, got %+v", ev)
	}
	if ev := ExpiryAlarm(target, true, nil); ev != nil {
		t.Fatalf("unknown days must not fire, got %+v", ev)
	}
}

func TestSslTracker_EvaluateFiresExpiryAlarmEvenWhenUnchanged(t *testing.T) {
	_, tr, target, now := sslFixture(t)
	ctx := context.Background()

	info := validInfo(now, 10)
	evs, err := tr.Evaluate(ctx, target, info)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].ChangeKey != "ssl_expiry:10" {
		t.Fatalf("want expiry alarm on initial insert, got %+v", evs)
	}

	// Unchanged tuple next cycle: alarm still evaluated.
	evs, err = tr.Evaluate(ctx, target, info)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].ChangeKey != "ssl_expiry:10" {
		t.Fatalf("want expiry alarm on unchanged cycle, got %+v", evs)
	}
}

func TestSslTracker_Backfill(t *testing.T) {
	store, tr, target, now := sslFixture(t)
	ctx := context.Background()

	// Nothing stored: quiet.
	evs, err := tr.Backfill(ctx, target)
	if err != nil || len(evs) != 0 {
		t.Fatalf("want nothing, got evs=%+v err=%v", evs, err)
	}

	info := validInfo(now, 10)
	info.Valid = false
	if _, err := tr.Evaluate(ctx, target, info); err != nil {
		t.Fatal(err)
	}
	snap, _ := store.LatestSnapshot(ctx, target.ID)

	evs, err = tr.Backfill(ctx, target)
	if err != nil {
		t.Fatal(err)
	}
	// Invalid snapshot: the ssl event re-emits; no expiry alarm since
	// the cert is invalid.
	if len(evs) != 1 {
		t.Fatalf("want one event, got %+v", evs)
	}
	if want := fmt.Sprintf("ssl:%d", snap.ID); evs[0].ChangeKey != want {
		t.Fatalf("want key %q, got %q", want, evs[0].ChangeKey)
	}
}
