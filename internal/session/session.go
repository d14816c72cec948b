// Package session holds the process-wide authenticated-session state.
// Pages read it to gate rendering; it is the only cross-page shared state.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Session describes an authenticated user session.
type Session struct {
	UserID   string
	Email    string
	Token    string
	IssuedAt time.Time
}

// Change is delivered to subscribers whenever the session state flips.
type Change struct {
	Authenticated bool
	Session       *Session
}

// Store is a single observable session cell with an explicit
// subscribe/unsubscribe lifecycle. All state is guarded by one mutex; sends
// to subscribers never block the store.
type Store struct {
	mu      sync.Mutex
	current *Session
	subs    map[int]chan Change
	nextID  int
}

// NewStore creates an empty (unauthenticated) session store.
func NewStore() *Store {
	return &Store{subs: make(map[int]chan Change)}
}

// Current returns a copy of the active session, or nil when signed out.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Authenticated reports whether a session is active.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Set installs a session and notifies subscribers.
func (s *Store) Set(sess Session) {
	s.mu.Lock()
	cp := sess
	s.current = &cp
	s.notifyLocked(Change{Authenticated: true, Session: &cp})
	s.mu.Unlock()
}

// Clear signs the session out and notifies subscribers. Clearing an already
// empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.notifyLocked(Change{Authenticated: false})
	s.mu.Unlock()
}

// Subscribe registers for session-change notifications. The returned cancel
// function must be called when the consumer goes away; after cancel no
// further changes are delivered.
func (s *Store) Subscribe() (<-chan Change, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan Change, 16)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notifyLocked(c Change) {
	for id, ch := range s.subs {
		select {
		case ch <- c:
		default:
			log.Printf("Session subscriber %d is not draining; dropping update", id)
		}
	}
}

// Provider verifies tokens against the external auth provider. The
// front-end never issues credentials itself.
type Provider struct {
	baseURL string
	client  *http.Client
}

// NewProvider creates a provider client for the given auth base URL.
func NewProvider(baseURL string, timeout time.Duration) *Provider {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Verify checks an access token with the provider's user endpoint and
// returns the session it describes.
func (p *Provider) Verify(ctx context.Context, token string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("token rejected by auth provider")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth provider returned %d", resp.StatusCode)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}

	return &Session{
		UserID:   user.ID,
		Email:    user.Email,
		Token:    token,
		IssuedAt: time.Now(),
	}, nil
}
