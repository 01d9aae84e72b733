// Package postgres is the pgx-backed store adapter. The schema is
// created on connect; the dedup relies on the uniqueness constraint on
// notifications (user, target, change_type, change_key).
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS target_urls (
	id                  BIGSERIAL PRIMARY KEY,
	url                 TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL DEFAULT '',
	enabled             BOOLEAN NOT NULL DEFAULT TRUE,
	refresh_seconds     INT NOT NULL DEFAULT 60,
	timeout_seconds     INT NOT NULL DEFAULT 30,
	ssl_expiration_days INT NOT NULL DEFAULT 30,
	ssl_days_remaining  INT,
	last_checked_unix   BIGINT NOT NULL DEFAULT 0,
	last_up             TIMESTAMPTZ,
	last_down           TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS target_url_stats (
	id               BIGSERIAL PRIMARY KEY,
	target_url_id    BIGINT NOT NULL REFERENCES target_urls(id),
	is_up            BOOLEAN NOT NULL,
	checked_at       TIMESTAMPTZ NOT NULL,
	checked_at_unix  BIGINT NOT NULL,
	response_time_ms BIGINT NOT NULL DEFAULT 0,
	status_code      INT NOT NULL DEFAULT 0,
	response         TEXT
);
CREATE INDEX IF NOT EXISTS idx_stats_target_id ON target_url_stats (target_url_id, id DESC);

CREATE TABLE IF NOT EXISTS target_url_ssl (
	id              BIGSERIAL PRIMARY KEY,
	target_url_id   BIGINT NOT NULL REFERENCES target_urls(id),
	is_valid        BOOLEAN NOT NULL,
	valid_from      TIMESTAMPTZ,
	valid_to        TIMESTAMPTZ,
	issuer_cn       TEXT NOT NULL DEFAULT '',
	subject_cn      TEXT NOT NULL DEFAULT '',
	fingerprint256  TEXT NOT NULL DEFAULT '',
	days_left       INT,
	created_at      TIMESTAMPTZ NOT NULL,
	last_checked_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ssl_target_id ON target_url_ssl (target_url_id, id DESC);

CREATE TABLE IF NOT EXISTS users (
	id    BIGSERIAL PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS target_url_user (
	user_id       BIGINT NOT NULL REFERENCES users(id),
	target_url_id BIGINT NOT NULL REFERENCES target_urls(id),
	enabled       BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (user_id, target_url_id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL REFERENCES users(id),
	target_url_id BIGINT NOT NULL REFERENCES target_urls(id),
	change_type   TEXT NOT NULL,
	change_key    TEXT NOT NULL,
	message       TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, target_url_id, change_type, change_key)
);`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// ---- TargetStore ----

func (s *Store) Upsert(ctx context.Context, t *domain.Target) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO target_urls (url, name, enabled, refresh_seconds, timeout_seconds, ssl_expiration_days)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		RETURNING id`,
		t.URL, t.Name, t.Enabled, t.RefreshSeconds, t.TimeoutSeconds, t.SSLExpiryDays,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("upsert target: %w", err)
	}
	return nil
}

const targetCols = `id, url, name, enabled, refresh_seconds, timeout_seconds,
	ssl_expiration_days, ssl_days_remaining, last_checked_unix, last_up, last_down`

func scanTarget(row pgx.Row) (*domain.Target, error) {
	var t domain.Target
	err := row.Scan(&t.ID, &t.URL, &t.Name, &t.Enabled, &t.RefreshSeconds,
		&t.TimeoutSeconds, &t.SSLExpiryDays, &t.SSLDaysRemaining,
		&t.LastCheckedUnix, &t.LastUp, &t.LastDown)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListEnabled(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+targetCols+` FROM target_urls WHERE enabled ORDER BY id`)
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
	t, err := scanTarget(s.pool.QueryRow(ctx,
		`SELECT `+targetCols+` FROM target_urls WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *Store) MarkChecked(ctx context.Context, id int64, unix int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE target_urls SET last_checked_unix=$1 WHERE id=$2`, unix, id)
	return err
}

func (s *Store) MarkUp(ctx context.Context, id int64, at time.Time, unix int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE target_urls SET last_up=$1, last_checked_unix=$2 WHERE id=$3`, at, unix, id)
	return err
}

func (s *Store) MarkDown(ctx context.Context, id int64, at time.Time, unix int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE target_urls SET last_down=$1, last_checked_unix=$2 WHERE id=$3`, at, unix, id)
	return err
}

func (s *Store) SetSSLDaysRemaining(ctx context.Context, id int64, days *int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE target_urls SET ssl_days_remaining=$1 WHERE id=$2`, days, id)
	return err
}

// ---- StatStore ----

func (s *Store) AppendStat(ctx context.Context, r *domain.CheckRecord) (int64, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO target_url_stats (target_url_id, is_up, checked_at, checked_at_unix, response_time_ms, status_code, response)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id`,
		r.TargetID, r.Up, r.CheckedAt, r.CheckedAtUnix, r.LatencyMS, r.StatusCode, r.Response,
	).Scan(&r.ID)
	if err != nil {
		return 0, fmt.Errorf("insert stat: %w", err)
	}
	return r.ID, nil
}

const statCols = `id, target_url_id, is_up, checked_at, checked_at_unix, response_time_ms, status_code, response`

func scanStat(row pgx.Row) (*domain.CheckRecord, error) {
	var r domain.CheckRecord
	err := row.Scan(&r.ID, &r.TargetID, &r.Up, &r.CheckedAt, &r.CheckedAtUnix,
		&r.LatencyMS, &r.StatusCode, &r.Response)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) LastStat(ctx context.Context, targetID int64) (*domain.CheckRecord, error) {
	r, err := scanStat(s.pool.QueryRow(ctx,
		`SELECT `+statCols+` FROM target_url_stats WHERE target_url_id=$1 ORDER BY id DESC LIMIT 1`,
		targetID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *Store) StatBefore(ctx context.Context, targetID, beforeID int64) (*domain.CheckRecord, error) {
	r, err := scanStat(s.pool.QueryRow(ctx,
		`SELECT `+statCols+` FROM target_url_stats WHERE target_url_id=$1 AND id<$2 ORDER BY id DESC LIMIT 1`,
		targetID, beforeID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *Store) RecentStats(ctx context.Context, targetID int64, limit int) ([]domain.CheckRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+statCols+` FROM target_url_stats WHERE target_url_id=$1 ORDER BY id DESC LIMIT $2`,
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
	err := s.pool.QueryRow(ctx, `
		INSERT INTO target_url_ssl (target_url_id, is_valid, valid_from, valid_to, issuer_cn, subject_cn, fingerprint256, days_left, created_at, last_checked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		c.TargetID, c.Valid, c.NotBefore, c.NotAfter, c.IssuerCN, c.SubjectCN,
		c.Fingerprint, c.DaysLeft, c.CreatedAt, c.LastCheckedAt,
	).Scan(&c.ID)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return c.ID, nil
}

const sslCols = `id, target_url_id, is_valid, valid_from, valid_to, issuer_cn, subject_cn, fingerprint256, days_left, created_at, last_checked_at`

func scanSnapshot(row pgx.Row) (*domain.CertSnapshot, error) {
	var c domain.CertSnapshot
	err := row.Scan(&c.ID, &c.TargetID, &c.Valid, &c.NotBefore, &c.NotAfter,
		&c.IssuerCN, &c.SubjectCN, &c.Fingerprint, &c.DaysLeft,
		&c.CreatedAt, &c.LastCheckedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, targetID int64) (*domain.CertSnapshot, error) {
	c, err := scanSnapshot(s.pool.QueryRow(ctx,
		`SELECT `+sslCols+` FROM target_url_ssl WHERE target_url_id=$1 ORDER BY id DESC LIMIT 1`,
		targetID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *Store) LatestInvalidSnapshot(ctx context.Context, targetID int64) (*domain.CertSnapshot, error) {
	c, err := scanSnapshot(s.pool.QueryRow(ctx,
		`SELECT `+sslCols+` FROM target_url_ssl WHERE target_url_id=$1 AND NOT is_valid ORDER BY id DESC LIMIT 1`,
		targetID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *Store) TouchSnapshot(ctx context.Context, id int64, daysLeft *int, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE target_url_ssl SET last_checked_at=$1, days_left=$2 WHERE id=$3`, at, daysLeft, id)
	return err
}

// ---- NotificationStore ----

func (s *Store) SubscribersFor(ctx context.Context, targetID int64) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.name, u.email
		  FROM target_url_user tu
		  JOIN users u ON u.id = tu.user_id
		 WHERE tu.target_url_id = $1 AND tu.enabled`,
		targetID)
	if err != nil {
		return nil, fmt.Errorf("subscribers: %w", err)
	}
	defer rows.Close()

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

func (s *Store) InsertNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (user_id, target_url_id, change_type, change_key, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, target_url_id, change_type, change_key) DO NOTHING`,
		n.UserID, n.TargetID, n.ChangeType, n.ChangeKey, n.Message, n.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) RecentNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, target_url_id, change_type, change_key, message, created_at
		  FROM notifications ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.TargetID, &n.ChangeType,
			&n.ChangeKey, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

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
