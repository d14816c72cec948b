package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/trendsage/trendsage/internal/api"
)

// fakeBackend serves canned article lists and records submits. The lists
// function is consulted per fetch, so tests can change responses over time.
type fakeBackend struct {
	mu        sync.Mutex
	submits   int
	fetches   int
	submitErr error
	lists     func(fetch int) ([]api.Article, error)
}

func (f *fakeBackend) SubmitAnalysis(ctx context.Context, topic, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return f.submitErr
}

func (f *fakeBackend) ListArticles(ctx context.Context, category string) ([]api.Article, error) {
	f.mu.Lock()
	f.fetches++
	n := f.fetches
	f.mu.Unlock()
	if category != "" {
		return nil, errors.New("polling must fetch the unfiltered list")
	}
	return f.lists(n)
}

func (f *fakeBackend) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func fastOptions() Options {
	return Options{Interval: 2 * time.Millisecond, Attempts: 10}
}

func waitDone(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not settle in time")
	}
	return c.Snapshot()
}

func TestNewRejectsEmptyTopic(t *testing.T) {
	for _, topic := range []string{"", "   ", "\t\n"} {
		if _, err := New(&fakeBackend{}, topic, "", Options{}); err == nil {
			t.Errorf("expected error for topic %q", topic)
		}
	}
}

func TestStartTwice(t *testing.T) {
	backend := &fakeBackend{lists: func(int) ([]api.Article, error) { return nil, nil }}
	c, err := New(backend, "ai", "", fastOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := c.Start(context.Background()); err == nil {
		t.Error("expected error on second start")
	}
	waitDone(t, c)
}

func TestMatchSettlesController(t *testing.T) {
	// The article appears on the second fetch, sandwiched between
	// non-matching entries; the first title match in list order wins.
	backend := &fakeBackend{lists: func(fetch int) ([]api.Article, error) {
		if fetch < 2 {
			return []api.Article{{ID: "old", Title: "Unrelated"}}, nil
		}
		return []api.Article{
			{ID: "old", Title: "Unrelated"},
			{ID: "new", Title: "The Rise of Quantum Computing", Category: "Science"},
			{ID: "also", Title: "quantum computing, again"},
		}, nil
	}}

	c, _ := New(backend, "Quantum Computing", "Science", fastOptions())
	c.Start(context.Background())
	snap := waitDone(t, c)

	if snap.State != StateMatched {
		t.Fatalf("expected matched, got %s", snap.State)
	}
	if snap.Matched == nil || snap.Matched.ID != "new" {
		t.Fatalf("expected first matching article, got %+v", snap.Matched)
	}
	if snap.Advisory != "" {
		t.Errorf("expected no advisory on match, got %q", snap.Advisory)
	}
	if backend.submitCount() != 1 {
		t.Errorf("expected exactly one submit, got %d", backend.submitCount())
	}
}

func TestExhaustedAfterBudget(t *testing.T) {
	backend := &fakeBackend{lists: func(int) ([]api.Article, error) {
		return []api.Article{{ID: "a", Title: "Something Else Entirely"}}, nil
	}}

	c, _ := New(backend, "fusion energy", "", Options{Interval: 2 * time.Millisecond, Attempts: 3})
	c.Start(context.Background())
	snap := waitDone(t, c)

	if snap.State != StateExhausted {
		t.Fatalf("expected exhausted, got %s", snap.State)
	}
	if snap.Advisory == "" {
		t.Error("expected advisory message on exhaustion")
	}
	// The latest unfiltered list is still exposed for display.
	if len(snap.Articles) != 1 || snap.Articles[0].ID != "a" {
		t.Errorf("expected latest articles retained, got %+v", snap.Articles)
	}
}

func TestMatchInFinalFetchWinsOverExhaustion(t *testing.T) {
	// When the fetch after the last tick contains the match, the controller
	// settles Matched; the exhaustion settle afterwards is a no-op.
	c, _ := New(&fakeBackend{}, "fusion energy", "", fastOptions())
	c.mu.Lock()
	c.state = StatePolling
	c.mu.Unlock()

	c.apply(1, []api.Article{{ID: "late", Title: "Fusion Energy Breakthrough"}})
	c.settleExhausted()

	snap := c.Snapshot()
	if snap.State != StateMatched {
		t.Fatalf("expected matched from final fetch, got %s", snap.State)
	}
	if snap.Matched == nil || snap.Matched.ID != "late" {
		t.Errorf("unexpected match: %+v", snap.Matched)
	}
	if snap.Advisory != "" {
		t.Errorf("expected no advisory, got %q", snap.Advisory)
	}
}

func TestFailedFetchesAreNotTerminal(t *testing.T) {
	// The first fetches fail; the loop keeps its cadence and a later fetch
	// still lands the match.
	backend := &fakeBackend{}
	backend.lists = func(fetch int) ([]api.Article, error) {
		if fetch < 3 {
			return nil, errors.New("backend hiccup")
		}
		return []api.Article{{ID: "m", Title: "AI Safety Report"}}, nil
	}

	c, _ := New(backend, "AI Safety", "", Options{Interval: 2 * time.Millisecond, Attempts: 5})
	c.Start(context.Background())
	snap := waitDone(t, c)

	if snap.State != StateMatched {
		t.Fatalf("expected matched despite failed fetches, got %s", snap.State)
	}
}

func TestFailedSubmitStillPolls(t *testing.T) {
	backend := &fakeBackend{
		submitErr: errors.New("backend down"),
		lists: func(int) ([]api.Article, error) {
			return []api.Article{{ID: "x", Title: "Solar Power Update"}}, nil
		},
	}

	c, _ := New(backend, "solar power", "", fastOptions())
	c.Start(context.Background())
	snap := waitDone(t, c)

	if snap.State != StateMatched {
		t.Fatalf("expected polling to proceed after failed submit, got %s", snap.State)
	}
}

func TestCancellation(t *testing.T) {
	backend := &fakeBackend{lists: func(int) ([]api.Article, error) { return nil, nil }}

	c, _ := New(backend, "never matches", "", Options{Interval: 50 * time.Millisecond, Attempts: 100})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	time.Sleep(10 * time.Millisecond)
	cancel()
	snap := waitDone(t, c)

	if snap.State != StateCancelled {
		t.Fatalf("expected cancelled, got %s", snap.State)
	}
	if snap.Advisory != "" {
		t.Errorf("expected no advisory on cancel, got %q", snap.Advisory)
	}
}

func TestStaleFetchDiscarded(t *testing.T) {
	c, _ := New(&fakeBackend{lists: func(int) ([]api.Article, error) { return nil, nil }},
		"topic", "", fastOptions())

	fresh := []api.Article{{ID: "fresh", Title: "Other"}}
	stale := []api.Article{{ID: "stale", Title: "Other"}}

	c.mu.Lock()
	c.state = StatePolling
	c.mu.Unlock()

	c.apply(2, fresh)
	c.apply(1, stale) // a slower, earlier fetch landing late

	snap := c.Snapshot()
	if len(snap.Articles) != 1 || snap.Articles[0].ID != "fresh" {
		t.Errorf("expected stale result discarded, got %+v", snap.Articles)
	}
}

func TestApplyAfterTerminalIgnored(t *testing.T) {
	c, _ := New(&fakeBackend{lists: func(int) ([]api.Article, error) { return nil, nil }},
		"topic", "", fastOptions())

	c.mu.Lock()
	c.state = StateCancelled
	c.mu.Unlock()

	c.apply(1, []api.Article{{ID: "x", Title: "topic right here"}})
	snap := c.Snapshot()
	if snap.State != StateCancelled || snap.Matched != nil {
		t.Errorf("terminal state must not change: %+v", snap)
	}
}

func TestMatchTopic(t *testing.T) {
	articles := []api.Article{
		{ID: "1", Title: "Markets Rally"},
		{ID: "2", Title: "Inside the ELECTRIC VEHICLE boom"},
		{ID: "3", Title: "electric vehicle charging"},
	}

	if m := matchTopic("Electric Vehicle", articles); m == nil || m.ID != "2" {
		t.Errorf("expected first case-insensitive match, got %+v", m)
	}
	if m := matchTopic("blockchain", articles); m != nil {
		t.Errorf("expected no match, got %+v", m)
	}
}
