package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStoreSetAndClear(t *testing.T) {
	s := NewStore()
	if s.Authenticated() {
		t.Fatal("new store must be unauthenticated")
	}
	if s.Current() != nil {
		t.Fatal("expected nil session")
	}

	s.Set(Session{UserID: "u1", Email: "a@example.com", Token: "tok"})
	if !s.Authenticated() {
		t.Fatal("expected authenticated after Set")
	}
	cur := s.Current()
	if cur == nil || cur.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", cur)
	}

	s.Clear()
	if s.Authenticated() {
		t.Fatal("expected unauthenticated after Clear")
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Set(Session{UserID: "u1"})

	cur := s.Current()
	cur.UserID = "mutated"
	if s.Current().UserID != "u1" {
		t.Error("Current must return a copy, not shared state")
	}
}

func TestSubscribeDeliversChanges(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Set(Session{UserID: "u1"})
	change := <-ch
	if !change.Authenticated || change.Session == nil || change.Session.UserID != "u1" {
		t.Fatalf("unexpected change: %+v", change)
	}

	s.Clear()
	change = <-ch
	if change.Authenticated || change.Session != nil {
		t.Fatalf("expected sign-out change, got %+v", change)
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	cancel()

	s.Set(Session{UserID: "u1"})
	select {
	case c := <-ch:
		t.Fatalf("expected no delivery after cancel, got %+v", c)
	default:
	}
}

func TestClearEmptyStoreNotifiesNobody(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Clear()
	select {
	case c := <-ch:
		t.Fatalf("clearing an empty store must be a no-op, got %+v", c)
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStore()
	_, cancel := s.Subscribe() // never drained
	defer cancel()

	// More updates than the channel buffers; Set must never block.
	for i := 0; i < 50; i++ {
		s.Set(Session{UserID: "u"})
		s.Clear()
	}
}

func TestProviderVerify(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "a@example.com"})
	}))
	defer ts.Close()

	p := NewProvider(ts.URL, 0)

	sess, err := p.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != "u1" || sess.Email != "a@example.com" || sess.Token != "good-token" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if sess.IssuedAt.IsZero() {
		t.Error("expected IssuedAt to be set")
	}

	if _, err := p.Verify(context.Background(), "bad-token"); err == nil {
		t.Error("expected error for rejected token")
	}
}
