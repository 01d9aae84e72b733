package domain

import (
	"testing"
	"time"
)

func TestIsUpCode(t *testing.T) {
	up := []int{200, 204, 301, 302, 399}
	down := []int{0, 100, 199, 400, 404, 500, 503}
	for _, c := range up {
		if !IsUpCode(c) {
			t.Errorf("IsUpCode(%d) = false, want true", c)
		}
	}
	for _, c := range down {
		if IsUpCode(c) {
			t.Errorf("IsUpCode(%d) = true, want false", c)
		}
	}
}

func TestDaysLeftAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := DaysLeftAt(nil, now); got != nil {
		t.Fatalf("nil notAfter should yield nil, got %v", *got)
	}

	cases := []struct {
		notAfter time.Time
		want     int
	}{
		{now, 0},
		{now.Add(time.Hour), 1}, // partial day rounds up
		{now.Add(10 * 24 * time.Hour), 10},
		{now.Add(10*24*time.Hour + time.Minute), 11},
		{now.Add(-36 * time.Hour), -1}, // expired
	}
	for _, c := range cases {
		na := c.notAfter
		got := DaysLeftAt(&na, now)
		if got == nil || *got != c.want {
			t.Errorf("DaysLeftAt(%v) = %v, want %d", c.notAfter, got, c.want)
		}
	}
}

func TestCertTuple_NormalizesAndCompares(t *testing.T) {
	nb := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	na := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	a := &CertSnapshot{Valid: true, NotBefore: &nb, NotAfter: &na, IssuerCN: " R11 ", SubjectCN: "example.com", Fingerprint: "ab:cd"}
	b := &CertSnapshot{Valid: true, NotBefore: &nb, NotAfter: &na, IssuerCN: "R11", SubjectCN: "example.com", Fingerprint: "AB:CD"}
	if a.Tuple() != b.Tuple() {
		t.Fatalf("normalized tuples should match: %+v vs %+v", a.Tuple(), b.Tuple())
	}

	c := &CertSnapshot{Valid: false, NotBefore: &nb, NotAfter: &na, IssuerCN: "R11", SubjectCN: "example.com", Fingerprint: "AB:CD"}
	if a.Tuple() == c.Tuple() {
		t.Fatal("validity flip must change the tuple")
	}

	// Sub-second precision must not count as a change.
	naSkewed := na.Add(500 * time.Millisecond)
	d := &CertSnapshot{Valid: true, NotBefore: &nb, NotAfter: &naSkewed, IssuerCN: "R11", SubjectCN: "example.com", Fingerprint: "AB:CD"}
	if a.Tuple() != d.Tuple() {
		t.Fatal("sub-second skew should not change the tuple")
	}
}
