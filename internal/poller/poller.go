// Package poller drives the bounded polling loop that watches the backend
// for the article generated by a submitted analysis job.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/trendsage/trendsage/internal/api"
)

// State is the lifecycle state of a Controller.
//
// Idle -> Submitting -> Polling -> {Matched | Exhausted | Cancelled}.
// Matched and Exhausted are terminal-success states; Cancelled is a
// terminal no-op. Polling is never re-entered without a fresh controller.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateMatched    State = "matched"
	StateExhausted  State = "exhausted"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateMatched || s == StateExhausted || s == StateCancelled
}

const exhaustedAdvisory = "Analysis is taking longer than expected. Showing the latest available results; your article may still appear shortly."

// Backend is the slice of the API client the controller needs.
type Backend interface {
	SubmitAnalysis(ctx context.Context, topic, category string) error
	ListArticles(ctx context.Context, category string) ([]api.Article, error)
}

// Options tune the polling cadence.
type Options struct {
	Interval time.Duration // tick spacing, default 3s
	Attempts int           // tick budget, default 10
}

// Snapshot is a point-in-time view of a controller's observable state.
type Snapshot struct {
	Topic    string
	Category string
	State    State
	Attempt  int // ticks elapsed so far
	Attempts int // tick budget
	Articles []api.Article
	Matched  *api.Article
	Advisory string
}

// Controller runs one analysis job: a single submit call followed by a
// fixed-interval, bounded-retry poll of the unfiltered article list. Each
// tick's fetch is tagged with a monotonically increasing sequence number
// and responses older than the last applied one are discarded, so a slow
// fetch can never clobber the result of a later one.
type Controller struct {
	backend  Backend
	topic    string
	category string
	interval time.Duration
	attempts int

	mu       sync.Mutex
	started  bool
	state    State
	attempt  int
	lastSeq  uint64
	articles []api.Article
	matched  *api.Article
	advisory string
	done     chan struct{}
}

// New creates a controller for the given topic. The topic must be non-empty
// after trimming. The category is carried for display only; polling always
// fetches the unfiltered list so a result can't be missed to a stale filter.
func New(backend Backend, topic, category string, opts Options) (*Controller, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("topic must not be empty")
	}
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 10
	}
	return &Controller{
		backend:  backend,
		topic:    topic,
		category: category,
		interval: opts.Interval,
		attempts: opts.Attempts,
		state:    StateIdle,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the job in a background goroutine. It may be called once.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("controller for %q already started", c.topic)
	}
	c.started = true
	c.state = StateSubmitting
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Done is closed when the controller reaches a terminal state.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Snapshot returns the controller's current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Topic:    c.topic,
		Category: c.category,
		State:    c.state,
		Attempt:  c.attempt,
		Attempts: c.attempts,
		Articles: c.articles,
		Advisory: c.advisory,
	}
	if c.matched != nil {
		m := *c.matched
		snap.Matched = &m
	}
	return snap
}

func (c *Controller) run(ctx context.Context) {
	// Submit exactly once. A failed submit is logged, not terminal: the
	// backend may already be working on an earlier request for the same
	// topic, and the poll budget bounds the wait either way.
	if err := c.backend.SubmitAnalysis(ctx, c.topic, c.category); err != nil {
		log.Printf("Submit analysis for %q: %v", c.topic, err)
	}

	select {
	case <-ctx.Done(): // torn down while submitting
		c.cancel()
		return
	default:
	}

	c.mu.Lock()
	c.state = StatePolling
	c.mu.Unlock()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var seq uint64
	for tick := 0; tick < c.attempts; tick++ {
		select {
		case <-ctx.Done():
			c.cancel()
			return
		case <-c.done:
			return
		case <-ticker.C:
			seq++
			c.noteTick()
			go c.fetchOnce(ctx, seq)
		}
	}

	// Budget exhausted with no match applied yet: one final unfiltered
	// fetch, then settle. If the final fetch happens to contain the match,
	// it settles as Matched through the normal apply path.
	select {
	case <-ctx.Done():
		c.cancel()
		return
	case <-c.done:
		return
	default:
	}
	seq++
	c.fetchSync(ctx, seq)
	c.settleExhausted()
}

func (c *Controller) noteTick() {
	c.mu.Lock()
	c.attempt++
	c.mu.Unlock()
}

func (c *Controller) fetchOnce(ctx context.Context, seq uint64) {
	articles, err := c.backend.ListArticles(ctx, "")
	if err != nil {
		// Never terminal: the loop keeps its fixed cadence until the
		// budget runs out.
		log.Printf("Poll fetch %d for %q: %v", seq, c.topic, err)
		return
	}
	c.apply(seq, articles)
}

func (c *Controller) fetchSync(ctx context.Context, seq uint64) {
	articles, err := c.backend.ListArticles(ctx, "")
	if err != nil {
		log.Printf("Final fetch for %q: %v", c.topic, err)
		return
	}
	c.apply(seq, articles)
}

// apply installs a fetch result unless the controller is already terminal
// or a newer result has been applied.
func (c *Controller) apply(seq uint64, articles []api.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() || seq <= c.lastSeq {
		return
	}
	c.lastSeq = seq
	c.articles = articles

	if m := matchTopic(c.topic, articles); m != nil {
		c.matched = m
		c.state = StateMatched
		c.advisory = ""
		close(c.done)
	}
}

func (c *Controller) cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.state = StateCancelled
	close(c.done)
}

func (c *Controller) settleExhausted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.state = StateExhausted
	c.advisory = exhaustedAdvisory
	close(c.done)
}

// matchTopic returns the first article, in list order, whose title contains
// the topic case-insensitively.
func matchTopic(topic string, articles []api.Article) *api.Article {
	needle := strings.ToLower(topic)
	for i := range articles {
		if strings.Contains(strings.ToLower(articles[i].Title), needle) {
			m := articles[i]
			return &m
		}
	}
	return nil
}
