package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/inference"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("runner is closed")

// DefaultTimeout bounds a task when the runner is given none.
const DefaultTimeout = 60 * time.Second

// DefaultHistory is how many settled tasks a runner remembers for status
// reports. Running and undelivered tasks are never forgotten.
const DefaultHistory = 256

// Detector runs one inference request. *inference.Adapter implements it.
type Detector interface {
	Detect(ctx context.Context, req inference.Request) ([]inference.Detection, error)
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusClaimed   Status = "claimed"
)

// Task is one submitted request.
type Task struct {
	ID        string              `json:"id"`
	Model     string              `json:"model"`
	Image     annotation.ImageRef `json:"image"`
	Request   inference.Request   `json:"-"`
	Submitted time.Time           `json:"submitted"`
}

// Outcome is the result of a task, delivered on Results.
type Outcome struct {
	Task       Task
	Detections []inference.Detection
	Err        error
	Elapsed    time.Duration
}

// Info is a snapshot of a task for status reports.
type Info struct {
	Task
	Status     Status        `json:"status"`
	Detections int           `json:"detections"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

type entry struct {
	info   Info
	cancel context.CancelFunc
	sent   bool // outcome handed to Results
}

// settled reports whether nothing more can happen to the task.
func (e *entry) settled() bool {
	switch e.info.Status {
	case StatusClaimed:
		return true
	case StatusCancelled:
		return e.sent
	}
	return false
}

// Runner executes tasks concurrently. Submit, Cancel, Claim and Status are
// safe for concurrent use.
type Runner struct {
	detector Detector
	timeout  time.Duration
	results  chan Outcome

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	tasks   map[string]*entry
	history int
	closed  bool
}

// NewRunner creates a runner. A non-positive timeout uses DefaultTimeout.
// buffer sizes the Results channel.
func NewRunner(d Detector, timeout time.Duration, buffer int) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if buffer < 1 {
		buffer = 1
	}
	base, stop := context.WithCancel(context.Background())
	return &Runner{
		detector: d,
		timeout:  timeout,
		results:  make(chan Outcome, buffer),
		base:     base,
		stop:     stop,
		tasks:    make(map[string]*entry),
		history:  DefaultHistory,
	}
}

// Results delivers task outcomes, cancelled ones included.
func (r *Runner) Results() <-chan Outcome {
	return r.results
}

// Timeout returns the per-task time limit.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Submit starts req for the document image img and returns the task id.
func (r *Runner) Submit(req inference.Request, img annotation.ImageRef) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}

	task := Task{
		ID:        uuid.NewString(),
		Model:     req.Model,
		Image:     img,
		Request:   req,
		Submitted: time.Now(),
	}
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	r.tasks[task.ID] = &entry{info: Info{Task: task, Status: StatusRunning}, cancel: cancel}

	r.wg.Add(1)
	go r.run(ctx, cancel, task)

	slog.Info("inference task submitted", "task", task.ID, "model", req.Model, "image", img.Path)
	return task.ID, nil
}

func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, task Task) {
	defer r.wg.Done()
	defer cancel()

	start := time.Now()
	dets, err := r.detector.Detect(ctx, task.Request)
	out := Outcome{Task: task, Detections: dets, Err: err, Elapsed: time.Since(start)}

	r.mu.Lock()
	if e, ok := r.tasks[task.ID]; ok {
		e.info.Elapsed = out.Elapsed
		e.info.Detections = len(dets)
		if e.info.Status == StatusRunning {
			if err != nil {
				e.info.Status = StatusFailed
				e.info.Error = err.Error()
			} else {
				e.info.Status = StatusDone
			}
		}
		// The pixels are no longer needed.
		e.info.Request = inference.Request{}
	}
	r.mu.Unlock()

	select {
	case r.results <- out:
		r.mu.Lock()
		if e, ok := r.tasks[task.ID]; ok {
			e.sent = true
		}
		r.prune()
		r.mu.Unlock()
	case <-r.base.Done():
		slog.Debug("dropping outcome of closed runner", "task", task.ID)
	}
}

// prune forgets the oldest settled tasks beyond the history limit. The
// caller holds r.mu.
func (r *Runner) prune() {
	if len(r.tasks) <= r.history {
		return
	}
	var old []*entry
	for _, e := range r.tasks {
		if e.settled() {
			old = append(old, e)
		}
	}
	sort.Slice(old, func(i, j int) bool { return old[i].info.Submitted.Before(old[j].info.Submitted) })
	for _, e := range old {
		if len(r.tasks) <= r.history {
			break
		}
		delete(r.tasks, e.info.ID)
	}
}

// Cancel dismisses a task that has not been claimed. A running task is
// stopped; a finished one keeps its queued outcome, but Claim refuses it
// either way. It reports whether the task was dismissed.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok || !r.dismiss(e) {
		return false
	}
	slog.Info("inference task cancelled", "task", id)
	return true
}

// CancelAll dismisses every unclaimed task and returns how many there were.
func (r *Runner) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.tasks {
		if r.dismiss(e) {
			n++
		}
	}
	return n
}

func (r *Runner) dismiss(e *entry) bool {
	switch e.info.Status {
	case StatusRunning, StatusDone, StatusFailed:
		e.info.Status = StatusCancelled
		e.cancel()
		return true
	}
	return false
}

// Claim marks a delivered outcome as consumed. It fails when the task is
// unknown, was cancelled or has already been claimed.
func (r *Runner) Claim(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	switch e.info.Status {
	case StatusDone, StatusFailed:
		e.info.Status = StatusClaimed
		r.prune()
		return nil
	case StatusRunning:
		return fmt.Errorf("task %s has not finished", id)
	}
	return fmt.Errorf("task %s is %s", id, e.info.Status)
}

// Status returns a snapshot of one task.
func (r *Runner) Status(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// List returns every known task, oldest first.
func (r *Runner) List() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.tasks))
	for _, e := range r.tasks {
		out = append(out, e.info)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Submitted.Before(out[j].Submitted) })
	return out
}

// Running returns the number of tasks still running.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.tasks {
		if e.info.Status == StatusRunning {
			n++
		}
	}
	return n
}

// Close cancels all tasks and waits for their goroutines. Outcomes not yet
// delivered are discarded.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, e := range r.tasks {
		if e.info.Status == StatusRunning {
			e.info.Status = StatusCancelled
		}
	}
	r.mu.Unlock()

	r.stop()
	r.wg.Wait()
}
