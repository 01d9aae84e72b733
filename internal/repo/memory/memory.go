// Package memory is the in-process store used by tests and by runs
// without a configured database. All ids are assigned from one counter
// so insertion order matches id order, as the streak walk expects.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type subscription struct {
	userID   int64
	targetID int64
	enabled  bool
}

type dedupKey struct {
	userID     int64
	targetID   int64
	changeType string
	changeKey  string
}

type Store struct {
	mu      sync.RWMutex
	nextID  int64
	targets map[int64]*domain.Target
	stats   []*domain.CheckRecord
	ssl     []*domain.CertSnapshot
	users   map[int64]*domain.User
	subs    []subscription
	notifs  []*domain.Notification
	dedup   map[dedupKey]struct{}
}

func New() *Store {
	return &Store{
		targets: make(map[int64]*domain.Target),
		users:   make(map[int64]*domain.User),
		dedup:   make(map[dedupKey]struct{}),
	}
}

func (m *Store) Close() error { return nil }

func (m *Store) id() int64 {
	m.nextID++
	return m.nextID
}

// ---- TargetStore ----

func (m *Store) Upsert(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.targets {
		if cur.URL == t.URL {
			t.ID = cur.ID
			return nil
		}
	}
	t.ID = m.id()
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) ListEnabled(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		if t.Enabled {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) GetByID(ctx context.Context, id int64) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *Store) MarkChecked(ctx context.Context, id int64, unix int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.targets[id]; ok {
		t.LastCheckedUnix = unix
	}
	return nil
}

func (m *Store) MarkUp(ctx context.Context, id int64, at time.Time, unix int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.targets[id]; ok {
		cp := at
		t.LastUp = &cp
		t.LastCheckedUnix = unix
	}
	return nil
}

func (m *Store) MarkDown(ctx context.Context, id int64, at time.Time, unix int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.targets[id]; ok {
		cp := at
		t.LastDown = &cp
		t.LastCheckedUnix = unix
	}
	return nil
}

func (m *Store) SetSSLDaysRemaining(ctx context.Context, id int64, days *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.targets[id]; ok {
		if days == nil {
			t.SSLDaysRemaining = nil
		} else {
			cp := *days
			t.SSLDaysRemaining = &cp
		}
	}
	return nil
}

// ---- StatStore ----

func (m *Store) AppendStat(ctx context.Context, r *domain.CheckRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	cp := *r
	m.stats = append(m.stats, &cp)
	return r.ID, nil
}

func (m *Store) LastStat(ctx context.Context, targetID int64) (*domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.stats) - 1; i >= 0; i-- {
		if m.stats[i].TargetID == targetID {
			cp := *m.stats[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) StatBefore(ctx context.Context, targetID, beforeID int64) (*domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.stats) - 1; i >= 0; i-- {
		s := m.stats[i]
		if s.TargetID == targetID && s.ID < beforeID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) RecentStats(ctx context.Context, targetID int64, limit int) ([]domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CheckRecord
	for i := len(m.stats) - 1; i >= 0 && len(out) < limit; i-- {
		if m.stats[i].TargetID == targetID {
			out = append(out, *m.stats[i])
		}
	}
	return out, nil
}

// ---- SslStore ----

func (m *Store) InsertSnapshot(ctx context.Context, s *domain.CertSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	cp := *s
	m.ssl = append(m.ssl, &cp)
	return s.ID, nil
}

func (m *Store) LatestSnapshot(ctx context.Context, targetID int64) (*domain.CertSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.ssl) - 1; i >= 0; i-- {
		if m.ssl[i].TargetID == targetID {
			cp := *m.ssl[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) LatestInvalidSnapshot(ctx context.Context, targetID int64) (*domain.CertSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.ssl) - 1; i >= 0; i-- {
		s := m.ssl[i]
		if s.TargetID == targetID && !s.Valid {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) TouchSnapshot(ctx context.Context, id int64, daysLeft *int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.ssl {
		if s.ID == id {
			s.LastCheckedAt = at
			if daysLeft == nil {
				s.DaysLeft = nil
			} else {
				cp := *daysLeft
				s.DaysLeft = &cp
			}
			return nil
		}
	}
	return nil
}

// ---- NotificationStore ----

func (m *Store) SubscribersFor(ctx context.Context, targetID int64) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.User
	for _, s := range m.subs {
		if s.targetID == targetID && s.enabled {
			if u, ok := m.users[s.userID]; ok {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func (m *Store) InsertNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dedupKey{n.UserID, n.TargetID, n.ChangeType, n.ChangeKey}
	if _, exists := m.dedup[key]; exists {
		return false, nil
	}
	m.dedup[key] = struct{}{}
	n.ID = m.id()
	cp := *n
	m.notifs = append(m.notifs, &cp)
	return true, nil
}

func (m *Store) RecentNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Notification
	for i := len(m.notifs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.notifs[i])
	}
	return out, nil
}

func (m *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- test/dev helpers ----

// AddUser creates a user and returns its id.
func (m *Store) AddUser(name, email string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.users[id] = &domain.User{ID: id, Name: name, Email: email}
	return id
}

// Subscribe links a user to a target.
func (m *Store) Subscribe(userID, targetID int64, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, subscription{userID: userID, targetID: targetID, enabled: enabled})
}
