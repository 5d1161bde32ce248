package job

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/samandr77/microservices/ticketflow/pkg/logger"
)

type job struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
}

// Service runs registered functions periodically until the context passed to Start is done.
// Every run gets its own request id, so the API calls made by one refresh share it in the logs.
type Service struct {
	jobs   []job
	wg     *sync.WaitGroup
	tagCtx func(ctx context.Context) context.Context
}

func NewService() *Service {
	return &Service{
		wg:     &sync.WaitGroup{},
		tagCtx: func(ctx context.Context) context.Context { return ctx },
	}
}

// WithContext sets a hook applied to the context of every run, e.g. to attach the user id
// of the current session.
func (s *Service) WithContext(fn func(ctx context.Context) context.Context) *Service {
	s.tagCtx = fn

	return s
}

func (s *Service) RegisterJob(name string, interval time.Duration, fn func(ctx context.Context) error) *Service {
	return s.TryRegisterJob(true, name, interval, fn)
}

func (s *Service) TryRegisterJob(isEnabled bool, name string, interval time.Duration, fn func(ctx context.Context) error) *Service {
	if !isEnabled || interval <= 0 {
		return s
	}

	s.jobs = append(s.jobs, job{
		name:     name,
		interval: interval,
		fn:       fn,
	})

	return s
}

func (s *Service) Start(ctx context.Context) *Service {
	for _, v := range s.jobs {
		s.wg.Add(1)

		go s.startJob(ctx, v)
	}

	return s
}

func (s *Service) startJob(ctx context.Context, job job) {
	defer s.wg.Done()

	l := slog.Default().With("job", job.name)

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	failures := 0

	for {
		runCtx := logger.WithRequestID(s.tagCtx(ctx), uuid.Must(uuid.NewV4()).String())

		l.DebugContext(runCtx, "job started")

		err := s.withRecover(runCtx, l, job)

		switch {
		case err == nil:
			failures = 0
			l.DebugContext(runCtx, "job done")
		case ctx.Err() != nil:
			l.DebugContext(runCtx, "job interrupted", "error", err)
		default:
			failures++
			l.ErrorContext(runCtx, "job failed", "error", err, "failures", failures)
		}

		select {
		case <-ctx.Done():
			l.DebugContext(ctx, "context done")
			return

		case <-ticker.C:
		}
	}
}

func (s *Service) withRecover(ctx context.Context, l *slog.Logger, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.ErrorContext(ctx, "job panic", "error", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return j.fn(ctx)
}

// Stop waits for all started jobs to return. Cancel the Start context first.
func (s *Service) Stop() {
	s.wg.Wait()
}
