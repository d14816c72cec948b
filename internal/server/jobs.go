package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/trendsage/trendsage/internal/poller"
)

// jobPruneDelay is how long a finished job stays visitable before its
// registry entry is dropped.
const jobPruneDelay = 10 * time.Minute

type runningJob struct {
	id      int64
	storeID int64
	ctrl    *poller.Controller
	cancel  context.CancelFunc
}

// jobRegistry owns the polling controllers started from the search form.
// Each job gets exactly one controller; cancelling a job tears its
// controller down through the context.
type jobRegistry struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*runningJob
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[int64]*runningJob)}
}

func (r *jobRegistry) add(j *runningJob) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	j.id = r.nextID
	r.jobs[j.id] = j
	return j.id
}

func (r *jobRegistry) get(id int64) (*runningJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

func (r *jobRegistry) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// startJob submits an analysis for the topic and begins polling for its
// result. It returns the registry id the job page is keyed by.
func (s *Server) startJob(topic, category string) (int64, error) {
	ctrl, err := poller.New(s.backend, topic, category, poller.Options{
		Interval: s.cfg.PollInterval(),
		Attempts: s.cfg.Polling.Attempts,
	})
	if err != nil {
		return 0, err
	}

	storeID, err := s.cache.RecordJob(topic, category)
	if err != nil {
		log.Printf("Recording job for %q: %v", topic, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &runningJob{storeID: storeID, ctrl: ctrl, cancel: cancel}
	id := s.jobs.add(j)

	if err := ctrl.Start(ctx); err != nil {
		cancel()
		s.jobs.remove(id)
		return 0, err
	}

	go s.watchJob(j)
	return id, nil
}

// watchJob waits for the controller to settle, records the outcome, and
// schedules the registry entry for pruning.
func (s *Server) watchJob(j *runningJob) {
	<-j.ctrl.Done()
	j.cancel()

	snap := j.ctrl.Snapshot()

	var matchedID string
	if snap.Matched != nil {
		matchedID = snap.Matched.ID
	}
	if j.storeID > 0 {
		if err := s.cache.FinishJob(j.storeID, string(snap.State), matchedID, snap.Advisory); err != nil {
			log.Printf("Finishing job %d: %v", j.storeID, err)
		}
	}
	if len(snap.Articles) > 0 {
		if err := s.cache.CacheArticles(snap.Articles); err != nil {
			log.Printf("Caching %d articles from job: %v", len(snap.Articles), err)
		}
	}

	time.AfterFunc(jobPruneDelay, func() { s.jobs.remove(j.id) })
}
