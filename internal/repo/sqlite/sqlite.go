// Package sqlite is the zero-configuration store adapter, backed by the
// cgo-free modernc driver. Timestamps are stored as RFC 3339 text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The engine's writes are serialized per target; one connection
	// avoids SQLITE_BUSY churn across targets.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS target_urls (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	url                 TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL DEFAULT '',
	enabled             INTEGER NOT NULL DEFAULT 1,
	refresh_seconds     INTEGER NOT NULL DEFAULT 60,
	timeout_seconds     INTEGER NOT NULL DEFAULT 30,
	ssl_expiration_days INTEGER NOT NULL DEFAULT 30,
	ssl_days_remaining  INTEGER,
	last_checked_unix   INTEGER NOT NULL DEFAULT 0,
	last_up             TEXT,
	last_down           TEXT
);

CREATE TABLE IF NOT EXISTS target_url_stats (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	target_url_id    INTEGER NOT NULL REFERENCES target_urls(id),
	is_up            INTEGER NOT NULL,
	checked_at       TEXT NOT NULL,
	checked_at_unix  INTEGER NOT NULL,
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	status_code      INTEGER NOT NULL DEFAULT 0,
	response         TEXT
);
CREATE INDEX IF NOT EXISTS idx_stats_target_id ON target_url_stats (target_url_id, id DESC);

CREATE TABLE IF NOT EXISTS target_url_ssl (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	target_url_id   INTEGER NOT NULL REFERENCES target_urls(id),
	is_valid        INTEGER NOT NULL,
	valid_from      TEXT,
	valid_to        TEXT,
	issuer_cn       TEXT NOT NULL DEFAULT '',
	subject_cn      TEXT NOT NULL DEFAULT '',
	fingerprint256  TEXT NOT NULL DEFAULT '',
	days_left       INTEGER,
	created_at      TEXT NOT NULL,
	last_checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ssl_target_id ON target_url_ssl (target_url_id, id DESC);

CREATE TABLE IF NOT EXISTS users (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS target_url_user (
	user_id       INTEGER NOT NULL REFERENCES users(id),
	target_url_id INTEGER NOT NULL REFERENCES target_urls(id),
	enabled       INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (user_id, target_url_id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER NOT NULL REFERENCES users(id),
	target_url_id INTEGER NOT NULL REFERENCES target_urls(id),
	change_type   TEXT NOT NULL,
	change_key    TEXT NOT NULL,
	message       TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	UNIQUE (user_id, target_url_id, change_type, change_key)
);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ---- time encoding ----

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodeTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := decodeTime(ns.String)
	return &t
}

// ---- TargetStore ----

func (s *Store) Upsert(ctx context.Context, t *domain.Target) error {
	enabled := 0
	if t.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO target_urls (url, name, enabled, refresh_seconds, timeout_seconds, ssl_expiration_days)
		VALUES (?,?,?,?,?,?)`,
		t.URL, t.Name, enabled, t.RefreshSeconds, t.TimeoutSeconds, t.SSLExpiryDays)
	if err != nil {
		return fmt.Errorf("upsert target: %w", err)
	}
	return s.db.QueryRowContext(ctx,
		`SELECT id FROM target_urls WHERE url = ?`, t.URL).Scan(&t.ID)
}

const targetCols = `id, url, name, enabled, refresh_seconds, timeout_seconds,
	ssl_expiration_days, ssl_days_remaining, last_checked_unix, last_up, last_down`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*domain.Target, error) {
	var (
		t       domain.Target
		enabled int
		up, dn  sql.NullString
	)
	err := row.Scan(&t.ID, &t.URL, &t.Name, &enabled, &t.RefreshSeconds,
		&t.TimeoutSeconds, &t.SSLExpiryDays, &t.SSLDaysRemaining,
		&t.LastCheckedUnix, &up, &dn)
	if err != nil {
		return nil, err
	}
	t.Enabled = enabled != 0
	t.LastUp = decodeTimePtr(up)
	t.LastDown = decodeTimePtr(dn)
	return &t, nil
}

func (s *Store) ListEnabled(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+targetCols+` FROM target_urls WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Target, error) {
	t, err := scanTarget(s.db.QueryRowContext(ctx,
		`SELECT `+targetCols+` FROM target_urls WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *Store) MarkChecked(ctx context.Context, id int64, unix int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE target_urls SET last_checked_unix=? WHERE id=?`, unix, id)
	return err
}

func (s *Store) MarkUp(ctx context.Context, id int64, at time.Time, unix int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE target_urls SET last_up=?, last_checked_unix=? WHERE id=?`,
		encodeTime(at), unix, id)
	return err
}

func (s *Store) MarkDown(ctx context.Context, id int64, at time.Time, unix int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE target_urls SET last_down=?, last_checked_unix=? WHERE id=?`,
		encodeTime(at), unix, id)
	return err
}

func (s *Store) SetSSLDaysRemaining(ctx context.Context, id int64, days *int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE target_urls SET ssl_days_remaining=? WHERE id=?`, days, id)
	return err
}

// ---- StatStore ----

func (s *Store) AppendStat(ctx context.Context, r *domain.CheckRecord) (int64, error) {
	up := 0
	if r.Up {
		up = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO target_url_stats (target_url_id, is_up, checked_at, checked_at_unix, response_time_ms, status_code, response)
		VALUES (?,?,?,?,?,?,?)`,
		r.TargetID, up, encodeTime(r.CheckedAt), r.CheckedAtUnix, r.LatencyMS, r.StatusCode, r.Response)
	if err != nil {
		return 0, fmt.Errorf("insert stat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

const statCols = `id, target_url_id, is_up, checked_at, checked_at_unix, response_time_ms, status_code, response`

func scanStat(row rowScanner) (*domain.CheckRecord, error) {
	var (
		r       domain.CheckRecord
		up      int
		checked string
	)
	err := row.Scan(&r.ID, &r.TargetID, &up, &checked, &r.CheckedAtUnix,
		&r.LatencyMS, &r.StatusCode, &r.Response)
	if err != nil {
		return nil, err
	}
	r.Up = up != 0
	r.CheckedAt = decodeTime(checked)
	return &r, nil
}

func (s *Store) LastStat(ctx context.Context, targetID int64) (*domain.CheckRecord, error) {
	r, err := scanStat(s.db.QueryRowContext(ctx,
		`SELECT `+statCols+` FROM target_url_stats WHERE target_url_id=? ORDER BY id DESC LIMIT 1`,
		targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Store) StatBefore(ctx context.Context, targetID, beforeID int64) (*domain.CheckRecord, error) {
	r, err := scanStat(s.db.QueryRowContext(ctx,
		`SELECT `+statCols+` FROM target_url_stats WHERE target_url_id=? AND id<? ORDER BY id DESC LIMIT 1`,
		targetID, beforeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Store) RecentStats(ctx context.Context, targetID int64, limit int) ([]domain.CheckRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statCols+` FROM target_url_stats WHERE target_url_id=? ORDER BY id DESC LIMIT ?`,
		targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent stats: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckRecord
	for rows.Next() {
		r, err := scanStat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ---- SslStore ----

func (s *Store) InsertSnapshot(ctx context.Context, c *domain.CertSnapshot) (int64, error) {
	valid := 0
	if c.Valid {
		valid = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO target_url_ssl (target_url_id, is_valid, valid_from, valid_to, issuer_cn, subject_cn, fingerprint256, days_left, created_at, last_checked_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.TargetID, valid, encodeTimePtr(c.NotBefore), encodeTimePtr(c.NotAfter),
		c.IssuerCN, c.SubjectCN, c.Fingerprint, c.DaysLeft,
		encodeTime(c.CreatedAt), encodeTime(c.LastCheckedAt))
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

const sslCols = `id, target_url_id, is_valid, valid_from, valid_to, issuer_cn, subject_cn, fingerprint256, days_left, created_at, last_checked_at`

func scanSnapshot(row rowScanner) (*domain.CertSnapshot, error) {
	var (
		c                 domain.CertSnapshot
		valid             int
		from, to          sql.NullString
		created, lastChkd string
	)
	err := row.Scan(&c.ID, &c.TargetID, &valid, &from, &to, &c.IssuerCN,
		&c.SubjectCN, &c.Fingerprint, &c.DaysLeft, &created, &lastChkd)
	if err != nil {
		return nil, err
	}
	c.Valid = valid != 0
	c.NotBefore = decodeTimePtr(from)
	c.NotAfter = decodeTimePtr(to)
	c.CreatedAt = decodeTime(created)
	c.LastCheckedAt = decodeTime(lastChkd)
	return &c, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, targetID int64) (*domain.CertSnapshot, error) {
	c, err := scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT `+sslCols+` FROM target_url_ssl WHERE target_url_id=? ORDER BY id DESC LIMIT 1`,
		targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) LatestInvalidSnapshot(ctx context.Context, targetID int64) (*domain.CertSnapshot, error) {
	c, err := scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT `+sslCols+` FROM target_url_ssl WHERE target_url_id=? AND is_valid=0 ORDER BY id DESC LIMIT 1`,
		targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) TouchSnapshot(ctx context.Context, id int64, daysLeft *int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE target_url_ssl SET last_checked_at=?, days_left=? WHERE id=?`,
		encodeTime(at), daysLeft, id)
	return err
}

// ---- NotificationStore ----

func (s *Store) SubscribersFor(ctx context.Context, targetID int64) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email
		  FROM target_url_user tu
		  JOIN users u ON u.id = tu.user_id
		 WHERE tu.target_url_id = ? AND tu.enabled = 1`,
		targetID)
	if err != nil {
		return nil, fmt.Errorf("subscribers: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s *Store) InsertNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notifications (user_id, target_url_id, change_type, change_key, message, created_at)
		VALUES (?,?,?,?,?,?)`,
		n.UserID, n.TargetID, n.ChangeType, n.ChangeKey, n.Message, encodeTime(n.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) RecentNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, target_url_id, change_type, change_key, message, created_at
		  FROM notifications ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n       domain.Notification
			created string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.TargetID, &n.ChangeType,
			&n.ChangeKey, &n.Message, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = decodeTime(created)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]domain.User, error) {
	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
