package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/competitor-scout/pkg/research"
)

const (
	// maxBufferedEvents bounds the per-job event log kept for replay to
	// late subscribers. Older events roll off once a run exceeds it.
	maxBufferedEvents = 512
	// maxBufferedLogs bounds the per-job captured log records.
	maxBufferedLogs = 2000
	// subscriberBuffer is the per-subscriber channel depth. A subscriber
	// that falls further behind than this loses events rather than
	// stalling the run; progress events are informational only.
	subscriberBuffer = 64
)

// Job is one research run tracked by the service.
type Job struct {
	ID         uuid.UUID                     `json:"id"`
	Competitor research.CompetitorDescriptor `json:"competitor"`
	Status     research.Status               `json:"status"`
	Result     *research.ResearchResult      `json:"result,omitempty"`
	CreatedAt  time.Time                     `json:"created_at"`
	UpdatedAt  time.Time                     `json:"updated_at"`
}

// jobRecord is the store's mutable state for one job: the job itself,
// the buffered progress events and log records, and the live event
// subscribers.
type jobRecord struct {
	job      Job
	events   []research.ProgressEvent
	logs     []LogEntry
	subs     map[int]chan research.ProgressEvent
	nextSub  int
	terminal bool
}

// Store keeps every job of this process in memory. Jobs live as long as
// the process; run history beyond that is the caller's concern.
type Store struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*jobRecord
}

func NewStore() *Store {
	return &Store{jobs: make(map[uuid.UUID]*jobRecord)}
}

// Create registers a new pending job and returns its snapshot.
func (s *Store) Create(competitor research.CompetitorDescriptor) Job {
	now := time.Now()
	job := Job{
		ID:         uuid.New(),
		Competitor: competitor,
		Status:     research.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = &jobRecord{
		job:  job,
		subs: make(map[int]chan research.ProgressEvent),
	}
	return job
}

// Get returns a snapshot of one job.
func (s *Store) Get(id uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return rec.job, true
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, rec.job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// SetStatus updates a job's lifecycle status.
func (s *Store) SetStatus(id uuid.UUID, status research.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.jobs[id]; ok {
		rec.job.Status = status
		rec.job.UpdatedAt = time.Now()
	}
}

// Finish stores a job's terminal result and ends every live event
// stream. It runs after the pipeline returned, so subscribers whose
// stream ends are guaranteed to find the result on the job.
func (s *Store) Finish(id uuid.UUID, result *research.ResearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return
	}
	rec.job.Result = result
	if result.Success {
		rec.job.Status = research.StatusCompleted
	} else {
		rec.job.Status = research.StatusError
	}
	rec.job.UpdatedAt = time.Now()
	rec.terminal = true
	for sub, ch := range rec.subs {
		delete(rec.subs, sub)
		close(ch)
	}
}

// PublishEvent appends one progress event to the job's buffer and fans
// it out to live subscribers. A subscriber with a full channel misses
// the event instead of blocking the pipeline.
func (s *Store) PublishEvent(id uuid.UUID, ev research.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return
	}
	rec.events = append(rec.events, ev)
	if len(rec.events) > maxBufferedEvents {
		rec.events = rec.events[len(rec.events)-maxBufferedEvents:]
	}
	for _, ch := range rec.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns the events buffered so far plus a live channel for
// the rest. The channel closes when the job finishes; cancel releases
// the subscription early and is safe to call after that close.
func (s *Store) Subscribe(id uuid.UUID) (replay []research.ProgressEvent, live <-chan research.ProgressEvent, cancel func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.jobs[id]
	if !found {
		return nil, nil, nil, false
	}

	replay = append([]research.ProgressEvent{}, rec.events...)
	ch := make(chan research.ProgressEvent, subscriberBuffer)
	if rec.terminal {
		close(ch)
		return replay, ch, func() {}, true
	}

	sub := rec.nextSub
	rec.nextSub++
	rec.subs[sub] = ch

	cancel = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, still := rec.subs[sub]; still {
			delete(rec.subs, sub)
			close(c)
		}
	}
	return replay, ch, cancel, true
}

// AppendLog stores one captured log record for the job.
func (s *Store) AppendLog(id uuid.UUID, entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return
	}
	rec.logs = append(rec.logs, entry)
	if len(rec.logs) > maxBufferedLogs {
		rec.logs = rec.logs[len(rec.logs)-maxBufferedLogs:]
	}
}

// Logs returns a snapshot of the job's captured log records.
func (s *Store) Logs(id uuid.UUID) ([]LogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return append([]LogEntry{}, rec.logs...), true
}
