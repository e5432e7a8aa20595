package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/loungeremote/internal/state"
	"github.com/user/loungeremote/pkg/lounge"
)

// Gateway routes commands from every front end (CLI daemon, HTTP, Telegram,
// routines) to the Remote for the addressed screen. Queued commands for one
// screen run in order; commands for different screens run concurrently.
type Gateway struct {
	mu      sync.RWMutex
	remotes []*Remote
	Queue   *Queue
	retry   *RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Gateway with the given concurrency limit for queued jobs.
func New(maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	g := &Gateway{
		Queue: NewQueue(concurrency),
		retry: DefaultRetryPolicy(),
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// SetRetryPolicy replaces the policy used for individual commands.
func (g *Gateway) SetRetryPolicy(p *RetryPolicy) {
	g.retry = p
}

// Add registers a remote. If the gateway is running the remote is started.
func (g *Gateway) Add(r *Remote) error {
	g.mu.Lock()
	for _, existing := range g.remotes {
		if existing.ScreenID() == r.ScreenID() {
			g.mu.Unlock()
			return fmt.Errorf("screen %s already registered", r.ScreenID())
		}
	}
	g.remotes = append(g.remotes, r)
	ctx := g.ctx
	g.mu.Unlock()

	if ctx != nil {
		return r.Start(ctx)
	}
	return nil
}

// Remote finds a remote by screen id or name. An empty ref selects the only
// registered remote.
func (g *Gateway) Remote(ref string) (*Remote, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if ref == "" {
		switch len(g.remotes) {
		case 0:
			return nil, fmt.Errorf("no screens connected")
		case 1:
			return g.remotes[0], nil
		default:
			return nil, fmt.Errorf("%d screens connected; name one", len(g.remotes))
		}
	}
	for _, r := range g.remotes {
		if r.ScreenID() == ref {
			return r, nil
		}
	}
	for _, r := range g.remotes {
		if r.Name() == ref {
			return r, nil
		}
	}
	return nil, fmt.Errorf("screen not found: %s", ref)
}

// Remotes returns every registered remote.
func (g *Gateway) Remotes() []*Remote {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Remote(nil), g.remotes...)
}

// Start starts the queue and every registered remote.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	g.ctx, g.cancel = context.WithCancel(ctx)
	remotes := append([]*Remote(nil), g.remotes...)
	g.mu.Unlock()

	g.Queue.Start(g.ctx)
	for _, r := range remotes {
		if err := r.Start(g.ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop drains the queue and disconnects every remote.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	cancel := g.cancel
	remotes := append([]*Remote(nil), g.remotes...)
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.Queue.Stop()

	var errs []error
	for _, r := range remotes {
		if err := r.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Execute sends cmd to the screen named by ref, retrying transient failures.
func (g *Gateway) Execute(ctx context.Context, ref string, cmd lounge.Command) error {
	r, err := g.Remote(ref)
	if err != nil {
		return err
	}
	return g.retry.Execute(ctx, func(ctx context.Context) error {
		return r.Execute(ctx, cmd)
	})
}

// Dispatch queues cmd for the screen named by ref and returns immediately.
func (g *Gateway) Dispatch(ref string, cmd lounge.Command, source string, opts ...JobOption) (*Job, error) {
	r, err := g.Remote(ref)
	if err != nil {
		return nil, err
	}
	job := NewJob(r.ScreenID(), cmd, source)
	for _, opt := range opts {
		opt(job)
	}
	if err := g.Queue.Enqueue(job); err != nil {
		return nil, err
	}
	slog.Debug("command queued", "job_id", job.ID, "screen_id", job.ScreenID, "command", cmd.Name(), "source", source)
	return job, nil
}

// RunRoutine parses a routine's command and queues it for the routine's screen.
func (g *Gateway) RunRoutine(r *state.Routine, source string, opts ...JobOption) (*Job, error) {
	cmd, err := ParseCommand(r.Command, r.Args)
	if err != nil {
		return nil, fmt.Errorf("routine %s: %w", r.Name, err)
	}
	return g.Dispatch(r.Screen, cmd, source, opts...)
}

func (g *Gateway) process(job *Job) error {
	r, err := g.Remote(job.ScreenID)
	if err != nil {
		return err
	}
	return g.retry.Execute(job.Ctx, func(ctx context.Context) error {
		job.Attempts++
		return r.Execute(ctx, job.Command)
	})
}
