package timeutil

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-5 * time.Second, "0s"},
		{42 * time.Second, "42s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour, "1h"},
		{26*time.Hour + 3*time.Minute, "1d 2h 3m"},
		{2*24*time.Hour + 5*time.Second, "2d 5s"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-45 * time.Second), "45s ago"},
		{now.Add(-(time.Minute + 12*time.Second)), "1m 12s ago"},
		{now.Add(-(2*time.Hour + 5*time.Minute)), "2h 5m ago"},
		{now.Add(-(3*24*time.Hour + 4*time.Hour)), "3d 4h ago"},
		{now.Add(time.Minute), "in the future"},
	}
	for _, c := range cases {
		if got := TimeAgo(c.at, now); got != c.want {
			t.Errorf("TimeAgo(%v) = %q, want %q", c.at, got, c.want)
		}
	}
}
