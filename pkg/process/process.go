package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// StopHook releases one resource during shutdown.
type StopHook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   StopHook
}

// Process encapsulates application lifecycle: a root context for background
// work and an ordered list of shutdown hooks.
type Process struct {
	mu        sync.RWMutex
	started   bool
	stopped   bool
	startTime time.Time
	hooks     []namedHook
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new unstarted Process.
func New() *Process {
	return &Process{}
}

// Register adds a shutdown hook. Hooks run in reverse registration order.
// Returns error if the name already exists or the process stopped.
func (p *Process) Register(name string, h StopHook) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return errors.New("process stopped")
	}
	for _, existing := range p.hooks {
		if existing.name == name {
			return fmt.Errorf("hook %q already registered", name)
		}
	}
	p.hooks = append(p.hooks, namedHook{name: name, fn: h})
	return nil
}

// Start marks the process as started and prepares context.
func (p *Process) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.startTime = time.Now()
	p.started = true
}

// Context is cancelled by Stop. Before Start it is context.Background().
func (p *Process) Context() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ctx == nil {
		return context.Background()
	}
	return p.ctx
}

// Stop cancels the root context, then runs every hook with ctx even if some fail.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.stopped = true
	hooks := p.hooks
	p.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
		}
	}
	return errors.Join(errs...)
}

// Uptime returns duration since start, zero if not started.
func (p *Process) Uptime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// StartedAt returns the start time, zero if not started.
func (p *Process) StartedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.startTime
}
