package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlack_Send(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: %q", ct)
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("want a slack client for a non-empty webhook")
	}
	if err := s.Send(context.Background(), "Website is DOWN", "example (https://example.com)"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(got, "*Website is DOWN*\n") {
		t.Fatalf("payload should lead with the bolded title, got %q", got)
	}
	if !strings.Contains(got, "https://example.com") {
		t.Fatalf("payload should carry the text, got %q", got)
	}
}

func TestSlack_Non2xxIsAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	err := s.Send(context.Background(), "X", "Y")
	if err == nil {
		t.Fatal("want error on non-2xx")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("error should carry the status, got %v", err)
	}
}

func TestSlack_DisabledValues(t *testing.T) {
	if s := NewSlack(""); s != nil {
		t.Fatalf("empty webhook must yield nil, got %+v", s)
	}
	var s *Slack
	if err := s.Send(context.Background(), "X", "Y"); err == nil {
		t.Fatal("nil client must refuse to send")
	}
}
