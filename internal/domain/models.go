package domain

import "time"

// Target is a monitored endpoint with its own schedule and thresholds.
type Target struct {
	ID               int64      `json:"id"`
	URL              string     `json:"url"`
	Name             string     `json:"name"`
	Enabled          bool       `json:"enabled"`
	RefreshSeconds   int        `json:"refresh_seconds"`
	TimeoutSeconds   int        `json:"timeout_seconds"`
	SSLExpiryDays    int        `json:"ssl_expiration_days"`
	SSLDaysRemaining *int       `json:"ssl_days_remaining"`
	LastCheckedUnix  int64      `json:"last_checked_unix"`
	LastUp           *time.Time `json:"last_up"`
	LastDown         *time.Time `json:"last_down"`
}

// CheckRecord is one appended probe outcome. Record IDs increase with
// insertion order; "previous" and "next" for streak walks are defined by
// ID, never by wall-clock time.
type CheckRecord struct {
	ID            int64     `json:"id"`
	TargetID      int64     `json:"target_id"`
	Up            bool      `json:"is_up"`
	CheckedAt     time.Time `json:"checked_at"`
	CheckedAtUnix int64     `json:"checked_at_unix"`
	LatencyMS     int64     `json:"response_time_ms"`
	StatusCode    int       `json:"status_code"`
	Response      *string   `json:"response,omitempty"`
}

// Notification is the dedup log: at most one row may exist per
// (UserID, TargetID, ChangeType, ChangeKey).
type Notification struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	TargetID   int64     `json:"target_url_id"`
	ChangeType string    `json:"change_type"`
	ChangeKey  string    `json:"change_key"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IsUpCode classifies a probe status code: [200,400) is up, anything
// else (including 0 for timeout or transport failure) is down.
func IsUpCode(code int) bool {
	return code >= 200 && code < 400
}

// MaxResponseExcerpt bounds the stored response body on a down check.
const MaxResponseExcerpt = 8192
