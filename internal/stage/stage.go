// Package stage runs scripted sequences of delayed steps. Each sequence
// is a Task; steps run one after another, each delayed relative to the
// previous one, and a failing step never stops the steps after it.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/clock"
)

// Step is one entry of a sequence.
type Step struct {
	Name  string
	Delay time.Duration
	run   func(ctx context.Context) ([]Step, error)
}

// Do returns a step that runs fn after delay.
func Do(delay time.Duration, name string, fn func(ctx context.Context) error) Step {
	return Step{Name: name, Delay: delay, run: func(ctx context.Context) ([]Step, error) {
		return nil, fn(ctx)
	}}
}

// Expand returns a step whose result is spliced into the sequence right
// after it. Use it when later steps depend on what this one produced.
func Expand(delay time.Duration, name string, fn func(ctx context.Context) ([]Step, error)) Step {
	return Step{Name: name, Delay: delay, run: fn}
}

// Scheduler owns all running tasks, keyed by the entity they narrate.
type Scheduler struct {
	clock  clock.Clock
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks map[string][]*Task
	wg    sync.WaitGroup
}

func NewScheduler(c clock.Clock, logger *slog.Logger) *Scheduler {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:  c,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string][]*Task),
	}
}

// Start schedules steps under key and returns immediately.
func (s *Scheduler) Start(key string, steps ...Step) *Task {
	t := &Task{
		key:   key,
		sched: s,
		queue: append([]Step(nil), steps...),
		done:  make(chan struct{}),
	}
	s.mu.Lock()
	s.tasks[key] = append(s.tasks[key], t)
	s.mu.Unlock()
	s.wg.Add(1)
	t.scheduleNext()
	return t
}

// Tasks returns the unfinished tasks registered under key.
func (s *Scheduler) Tasks(key string) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks[key]...)
}

// Wait blocks until every task has finished or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the context handed to running steps.
func (s *Scheduler) Close() {
	s.cancel()
}

func (s *Scheduler) remove(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tasks[t.key]
	for i, cur := range list {
		if cur == t {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.tasks, t.key)
		return
	}
	s.tasks[t.key] = list
}

// Task is a handle on one running sequence.
type Task struct {
	key   string
	sched *Scheduler

	mu        sync.Mutex
	queue     []Step
	timer     *clock.Timer
	gen       uint64
	cancelled bool
	ran       []string
	once      sync.Once
	done      chan struct{}
}

func (t *Task) Key() string { return t.key }

// Done is closed once the last step ran or the task was cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Ran lists the names of the steps executed so far.
func (t *Task) Ran() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ran...)
}

// Cancel drops the remaining steps. A step already running completes.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	timer := t.timer
	t.mu.Unlock()
	if timer.Stop() {
		t.finish()
	}
}

func (t *Task) scheduleNext() {
	t.mu.Lock()
	if t.cancelled || len(t.queue) == 0 {
		t.mu.Unlock()
		t.finish()
		return
	}
	step := t.queue[0]
	t.queue = t.queue[1:]
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	timer := t.sched.clock.AfterFunc(step.Delay, func() { t.run(step) })

	t.mu.Lock()
	if t.gen == gen {
		t.timer = timer
	}
	t.mu.Unlock()
}

func (t *Task) run(step Step) {
	t.mu.Lock()
	cancelled := t.cancelled
	t.mu.Unlock()
	if cancelled {
		t.finish()
		return
	}
	extra, err := t.safeRun(step)
	if err != nil {
		t.sched.logger.Warn("stage step failed", "task", t.key, "step", step.Name, "err", err)
	}
	t.mu.Lock()
	t.ran = append(t.ran, step.Name)
	if len(extra) > 0 {
		t.queue = append(append([]Step(nil), extra...), t.queue...)
	}
	t.mu.Unlock()
	t.scheduleNext()
}

func (t *Task) safeRun(step Step) (extra []Step, err error) {
	defer func() {
		if r := recover(); r != nil {
			extra = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if step.run == nil {
		return nil, nil
	}
	return step.run(t.sched.ctx)
}

func (t *Task) finish() {
	t.once.Do(func() {
		close(t.done)
		t.sched.remove(t)
		t.sched.wg.Done()
	})
}
