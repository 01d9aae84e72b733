package domain

import (
	"strings"
	"time"
)

// CertSnapshot is one stored certificate observation. A new row is only
// written when the comparable tuple changes; otherwise the latest row's
// LastCheckedAt and DaysLeft are refreshed in place.
type CertSnapshot struct {
	ID            int64      `json:"id"`
	TargetID      int64      `json:"target_url_id"`
	Valid         bool       `json:"is_valid"`
	NotBefore     *time.Time `json:"valid_from"`
	NotAfter      *time.Time `json:"valid_to"`
	IssuerCN      string     `json:"issuer_cn"`
	SubjectCN     string     `json:"subject_cn"`
	Fingerprint   string     `json:"fingerprint256"`
	DaysLeft      *int       `json:"days_left"`
	CreatedAt     time.Time  `json:"created_at"`
	LastCheckedAt time.Time  `json:"last_checked_at"`
}

// CertTuple is the comparable part of a snapshot, normalized: names
// trimmed, fingerprint trimmed and uppercased, times truncated to
// second precision in UTC.
type CertTuple struct {
	Valid       bool
	NotBefore   int64
	NotAfter    int64
	IssuerCN    string
	SubjectCN   string
	Fingerprint string
}

func NormalizeFingerprint(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UTC().Truncate(time.Second).Unix()
}

// Tuple returns the snapshot's normalized comparable tuple.
func (c *CertSnapshot) Tuple() CertTuple {
	return CertTuple{
		Valid:       c.Valid,
		NotBefore:   unixOrZero(c.NotBefore),
		NotAfter:    unixOrZero(c.NotAfter),
		IssuerCN:    strings.TrimSpace(c.IssuerCN),
		SubjectCN:   strings.TrimSpace(c.SubjectCN),
		Fingerprint: NormalizeFingerprint(c.Fingerprint),
	}
}

// DaysLeftAt computes whole days remaining until notAfter, rounded up.
// Returns nil when notAfter is unknown.
func DaysLeftAt(notAfter *time.Time, now time.Time) *int {
	if notAfter == nil {
		return nil
	}
	diff := notAfter.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return &days
}
