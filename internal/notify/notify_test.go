package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo/memory"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/tracker"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []string // "to|subject"
	bodies []string
	fail   bool
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp boom")
	}
	f.sent = append(f.sent, to+"|"+subject)
	f.bodies = append(f.bodies, body)
	return nil
}

type fakeBroadcast struct{ n int }

func (f *fakeBroadcast) Send(ctx context.Context, title, text string) error {
	f.n++
	return nil
}

func fixture(t *testing.T) (*memory.Store, *domain.Target) {
	t.Helper()
	store := memory.New()
	target := &domain.Target{URL: "https://example.com", Name: "example", Enabled: true}
	if err := store.Upsert(context.Background(), target); err != nil {
		t.Fatal(err)
	}
	return store, target
}

func downEvent() tracker.Event {
	return tracker.Event{
		ChangeType: "uptime",
		ChangeKey:  "stat:42",
		Message:    "Site is DOWN (HTTP 503, 120ms)",
		Subject:    "Website is DOWN",
	}
}

func TestNotifier_RecordsAndSendsOncePerKey(t *testing.T) {
	store, target := fixture(t)
	u1 := store.AddUser("alice", "alice@example.com")
	u2 := store.AddUser("bob", "bob@example.com")
	store.Subscribe(u1, target.ID, true)
	store.Subscribe(u2, target.ID, true)

	sender := &fakeSender{}
	n := New(store, sender, nil, zap.NewNop())

	recorded, err := n.Notify(context.Background(), target, downEvent())
	if err != nil {
		t.Fatal(err)
	}
	if recorded != 2 {
		t.Fatalf("want 2 recorded, got %d", recorded)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("want 2 mails, got %v", sender.sent)
	}
	if !strings.Contains(sender.bodies[0], "Key: stat:42") {
		t.Fatalf("body should carry the change key, got %q", sender.bodies[0])
	}

	// Same change key again (backfill after restart): nothing new.
	recorded, err = n.Notify(context.Background(), target, downEvent())
	if err != nil {
		t.Fatal(err)
	}
	if recorded != 0 {
		t.Fatalf("want 0 recorded on repeat, got %d", recorded)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("duplicate must not send, got %v", sender.sent)
	}
}

func TestNotifier_DisabledSubscriptionIsSkipped(t *testing.T) {
	store, target := fixture(t)
	u1 := store.AddUser("alice", "alice@example.com")
	u2 := store.AddUser("bob", "bob@example.com")
	store.Subscribe(u1, target.ID, true)
	store.Subscribe(u2, target.ID, false)

	sender := &fakeSender{}
	n := New(store, sender, nil, zap.NewNop())

	recorded, err := n.Notify(context.Background(), target, downEvent())
	if err != nil {
		t.Fatal(err)
	}
	if recorded != 1 || len(sender.sent) != 1 {
		t.Fatalf("only the enabled subscription should fire: recorded=%d sent=%v", recorded, sender.sent)
	}
	if sender.sent[0] != "alice@example.com|Website is DOWN" {
		t.Fatalf("unexpected delivery: %v", sender.sent)
	}
}

func TestNotifier_NoSubscribersIsQuiet(t *testing.T) {
	store, target := fixture(t)
	sender := &fakeSender{}
	n := New(store, sender, nil, zap.NewNop())

	recorded, err := n.Notify(context.Background(), target, downEvent())
	if err != nil {
		t.Fatal(err)
	}
	if recorded != 0 || len(sender.sent) != 0 {
		t.Fatalf("want nothing, got recorded=%d sent=%v", recorded, sender.sent)
	}
}

func TestNotifier_DeliveryFailureKeepsRecord(t *testing.T) {
	store, target := fixture(t)
	u := store.AddUser("alice", "alice@example.com")
	store.Subscribe(u, target.ID, true)

	sender := &fakeSender{fail: true}
	n := New(store, sender, nil, zap.NewNop())

	recorded, err := n.Notify(context.Background(), target, downEvent())
	if err != nil {
		t.Fatal(err)
	}
	if recorded != 1 {
		t.Fatalf("record must survive delivery failure, got %d", recorded)
	}

	// The decision stands: a retry of the same change is suppressed
	// even though the mail never went out.
	sender.fail = false
	recorded, _ = n.Notify(context.Background(), target, downEvent())
	if recorded != 0 || len(sender.sent) != 0 {
		t.Fatalf("failed delivery must not be retried, recorded=%d sent=%v", recorded, sender.sent)
	}
}

func TestNotifier_DefaultSubjectAndBroadcast(t *testing.T) {
	store, target := fixture(t)
	u := store.AddUser("alice", "alice@example.com")
	store.Subscribe(u, target.ID, true)

	sender := &fakeSender{}
	bc := &fakeBroadcast{}
	n := New(store, sender, bc, zap.NewNop())

	ev := downEvent()
	ev.Subject = ""
	if _, err := n.Notify(context.Background(), target, ev); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "alice@example.com|[PassieUptimeRobot] example" {
		t.Fatalf("want default subject, got %v", sender.sent)
	}
	if bc.n != 1 {
		t.Fatalf("want one broadcast, got %d", bc.n)
	}

	// Duplicate records nothing, so no second broadcast either.
	_, _ = n.Notify(context.Background(), target, ev)
	if bc.n != 1 {
		t.Fatalf("duplicate must not broadcast, got %d", bc.n)
	}
}
