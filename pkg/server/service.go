package server

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mikeboe/competitor-scout/pkg/research"
)

// Service runs research jobs in the background and tracks them in the
// in-memory store. One Service serves the whole process; each job gets
// its own engine run with a job-scoped logger.
type Service struct {
	deps   research.Deps
	opts   research.Options
	store  *Store
	logger *slog.Logger
}

func NewService(deps research.Deps, opts research.Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		store:  NewStore(),
		logger: logger,
	}
}

// CreateJobRequest is the body of POST /api/research.
type CreateJobRequest struct {
	Name        string                    `json:"name"`
	Website     string                    `json:"website,omitempty"`
	Description string                    `json:"description,omitempty"`
	Context     *research.BusinessContext `json:"context,omitempty"`
}

// CreateJob registers a job and starts its research run in the
// background. The returned snapshot carries the id the caller polls.
func (s *Service) CreateJob(req CreateJobRequest) (Job, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Job{}, fmt.Errorf("competitor name is required")
	}

	competitor := research.CompetitorDescriptor{
		Name:        strings.TrimSpace(req.Name),
		Website:     strings.TrimSpace(req.Website),
		Description: strings.TrimSpace(req.Description),
	}
	job := s.store.Create(competitor)
	s.logger.Info("research job created", "job_id", job.ID, "company", competitor.Name)

	go s.runJob(job.ID, competitor, req.Context)

	return job, nil
}

// runJob is the background worker for one job. The pipeline never
// returns an error past its own boundary, so the worker only has to
// store whatever result comes back.
func (s *Service) runJob(id uuid.UUID, competitor research.CompetitorDescriptor, business *research.BusinessContext) {
	ctx := context.Background()
	s.store.SetStatus(id, research.StatusProcessing)

	deps := s.deps
	deps.Logger = slog.New(NewJobLogHandler(s.store, id, s.logger.Handler())).With("job_id", id)

	observer := research.ObserverFunc(func(ev research.ProgressEvent) {
		s.store.PublishEvent(id, ev)
	})

	result := research.RunResearch(ctx, deps, s.opts, competitor, business, observer)
	s.store.Finish(id, result)

	if result.Success {
		s.logger.Info("research job completed", "job_id", id, "company", competitor.Name, "documents", result.Metadata.TotalDocuments)
	} else {
		s.logger.Error("research job failed", "job_id", id, "company", competitor.Name, "error", result.Error)
	}
}

// GetJob returns one job's snapshot.
func (s *Service) GetJob(id uuid.UUID) (Job, bool) {
	return s.store.Get(id)
}

// ListJobs returns all jobs, newest first.
func (s *Service) ListJobs() []Job {
	return s.store.List()
}

// GetJobLogs returns the job's captured log records.
func (s *Service) GetJobLogs(id uuid.UUID) ([]LogEntry, bool) {
	return s.store.Logs(id)
}

// StreamEvents returns an iterator over a job's progress events: first
// the buffered history, then live events until the job reaches a
// terminal state or ctx ends. When the iterator finishes without an
// error the job's result is already stored.
func (s *Service) StreamEvents(ctx context.Context, id uuid.UUID) (iter.Seq2[research.ProgressEvent, error], error) {
	replay, live, cancel, ok := s.store.Subscribe(id)
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}

	return func(yield func(research.ProgressEvent, error) bool) {
		defer cancel()
		for _, ev := range replay {
			if !yield(ev, nil) {
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				yield(research.ProgressEvent{}, ctx.Err())
				return
			case ev, open := <-live:
				if !open {
					return
				}
				if !yield(ev, nil) {
					return
				}
			}
		}
	}, nil
}
