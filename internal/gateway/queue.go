package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Queue manages per-screen lanes with a global concurrency semaphore.
// Each screen gets its own FIFO channel (lane) so that commands for a
// screen are sent in order, while the semaphore limits the total number
// of jobs in flight across all screens.
type Queue struct {
	lanes     map[string]chan *Job
	semaphore *semaphore.Weighted
	processor func(*Job) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent jobs to execute
// simultaneously across all lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[string]chan *Job),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// jobs to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for id, lane := range q.lanes {
		close(lane)
		delete(q.lanes, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Job to its screen's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil || q.ctx.Err() != nil {
		return fmt.Errorf("queue not running")
	}

	lane, exists := q.lanes[job.ScreenID]
	if !exists {
		lane = make(chan *Job, 100)
		q.lanes[job.ScreenID] = lane
		q.wg.Add(1)
		go q.processLane(lane)
	}

	select {
	case lane <- job:
		return nil
	default:
		return fmt.Errorf("queue full for screen %s", job.ScreenID)
	}
}

// processLane drains a single lane, acquiring a semaphore slot before
// running the processor synchronously.
func (q *Queue) processLane(lane chan *Job) {
	defer q.wg.Done()
	for {
		select {
		case job, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			q.run(job)
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) run(job *Job) {
	if q.processor == nil {
		return
	}
	q.active.Add(1)
	defer q.active.Add(-1)

	job.Ctx = q.ctx
	started := time.Now()
	job.StartedAt = &started
	job.Status = JobStatusRunning

	err := q.processor(job)

	ended := time.Now()
	job.EndedAt = &ended
	job.Err = err
	if err != nil {
		job.Status = JobStatusFailed
		slog.Error("job failed", "job_id", job.ID, "screen_id", job.ScreenID,
			"command", job.Command.Name(), "source", job.Source, "error", err)
	} else {
		job.Status = JobStatusComplete
	}
	if job.OnComplete != nil {
		job.OnComplete(err)
	}
}

// WaitIdle blocks until no jobs are actively being processed, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Job.
func (q *Queue) SetProcessor(fn func(*Job) error) {
	q.processor = fn
}
