package tracker

import (
	"context"
	"fmt"
	"sync"
)

// ErrJobRunning is returned when starting a job whose name is taken.
var ErrJobRunning = fmt.Errorf("job already running")

// Supervisor tracks long-running jobs by name so any of them can be
// cancelled individually without tearing the process down.
type Supervisor struct {
	mu   sync.Mutex
	wg   sync.WaitGroup
	jobs map[string]context.CancelFunc
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{jobs: make(map[string]context.CancelFunc)}
}

// Start launches fn under a cancellable child context registered under
// name. The registration is removed when fn returns.
func (s *Supervisor) Start(ctx context.Context, name string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	if _, ok := s.jobs[name]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	jobCtx, cancel := context.WithCancel(ctx)
	s.jobs[name] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.jobs, name)
			s.mu.Unlock()
			cancel()
			s.wg.Done()
		}()
		fn(jobCtx)
	}()
	return nil
}

// Cancel stops the named job if it is running.
func (s *Supervisor) Cancel(name string) bool {
	s.mu.Lock()
	cancel, ok := s.jobs[name]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running lists the names of jobs currently registered.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Shutdown cancels every job and waits for all of them to return.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.jobs {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
