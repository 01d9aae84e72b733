// Package timeutil holds the small time formatting helpers shared by the
// trackers, the notifier and the status API.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders a duration as "2d 3h 4m 5s", omitting zero
// units. Negative durations are clamped to "0s".
func FormatDuration(d time.Duration) string {
	s := int64(d / time.Second)
	if s < 0 {
		s = 0
	}
	days := s / 86400
	s -= days * 86400
	hours := s / 3600
	s -= hours * 3600
	mins := s / 60
	s -= mins * 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// TimeAgo renders how long ago t was relative to now, coarsening with
// age: "3d 4h ago", "2h 5m ago", "1m 12s ago", "45s ago".
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return "in the future"
	}
	s := int64(diff / time.Second)
	m := s / 60
	h := m / 60
	d := h / 24
	switch {
	case d > 0:
		return fmt.Sprintf("%dd %dh ago", d, h%24)
	case h > 0:
		return fmt.Sprintf("%dh %dm ago", h, m%60)
	case m > 0:
		return fmt.Sprintf("%dm %ds ago", m, s%60)
	default:
		return fmt.Sprintf("%ds ago", s)
	}
}
