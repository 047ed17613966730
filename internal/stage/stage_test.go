package stage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/clock"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) add(name string) func(context.Context) error {
	return func(context.Context) error {
		r.mu.Lock()
		r.got = append(r.got, name)
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestStepsRunInOrderWithRelativeDelays(t *testing.T) {
	c := clock.Fake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewScheduler(c, nil)
	rec := &recorder{}
	task := s.Start("job-1",
		Do(500*time.Millisecond, "rfo", rec.add("rfo")),
		Do(time.Second, "collected", rec.add("collected")),
	)
	if got := rec.list(); len(got) != 0 {
		t.Fatalf("steps ran before advance: %v", got)
	}
	c.Advance(499 * time.Millisecond)
	if got := rec.list(); len(got) != 0 {
		t.Fatalf("rfo ran early: %v", got)
	}
	c.Advance(time.Millisecond)
	if got := rec.list(); len(got) != 1 || got[0] != "rfo" {
		t.Fatalf("after 500ms got %v", got)
	}
	c.Advance(999 * time.Millisecond)
	if got := rec.list(); len(got) != 1 {
		t.Fatalf("collected ran early: %v", got)
	}
	c.Advance(time.Millisecond)
	if got := rec.list(); len(got) != 2 || got[1] != "collected" {
		t.Fatalf("after 1500ms got %v", got)
	}
	select {
	case <-task.Done():
	default:
		t.Fatalf("task not done")
	}
	if len(s.Tasks("job-1")) != 0 {
		t.Fatalf("finished task still registered")
	}
}

func TestExpandSplicesSteps(t *testing.T) {
	c := clock.Fake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewScheduler(c, nil)
	rec := &recorder{}
	s.Start("job-2",
		Expand(time.Second, "generate", func(context.Context) ([]Step, error) {
			return []Step{
				Do(100*time.Millisecond, "offer-1", rec.add("offer-1")),
				Do(100*time.Millisecond, "offer-2", rec.add("offer-2")),
			}, nil
		}),
		Do(time.Second, "presented", rec.add("presented")),
	)
	c.Advance(10 * time.Second)
	got := rec.list()
	want := []string{"offer-1", "offer-2", "presented"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestFailingStepDoesNotStopSequence(t *testing.T) {
	c := clock.Fake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewScheduler(c, nil)
	rec := &recorder{}
	task := s.Start("job-3",
		Do(time.Millisecond, "boom", func(context.Context) error { return errors.New("boom") }),
		Do(time.Millisecond, "panic", func(context.Context) error { panic("bad step") }),
		Do(time.Millisecond, "after", rec.add("after")),
	)
	c.Advance(time.Second)
	if got := rec.list(); len(got) != 1 || got[0] != "after" {
		t.Fatalf("expected trailing step to run, got %v", got)
	}
	if ran := task.Ran(); len(ran) != 3 {
		t.Fatalf("ran %v", ran)
	}
}

func TestCancelDropsRemainingSteps(t *testing.T) {
	c := clock.Fake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewScheduler(c, nil)
	rec := &recorder{}
	task := s.Start("job-4",
		Do(time.Second, "first", rec.add("first")),
		Do(time.Second, "second", rec.add("second")),
	)
	c.Advance(time.Second)
	if tasks := s.Tasks("job-4"); len(tasks) != 1 || tasks[0] != task {
		t.Fatalf("expected pending task handle, got %v", tasks)
	}
	task.Cancel()
	c.Advance(5 * time.Second)
	if got := rec.list(); len(got) != 1 || got[0] != "first" {
		t.Fatalf("got %v", got)
	}
	select {
	case <-task.Done():
	default:
		t.Fatalf("cancelled task not done")
	}
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRealClockWait(t *testing.T) {
	s := NewScheduler(clock.Real(), nil)
	defer s.Close()
	rec := &recorder{}
	s.Start("job-5", Do(5*time.Millisecond, "a", rec.add("a")), Do(5*time.Millisecond, "b", rec.add("b")))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := rec.list(); len(got) != 2 {
		t.Fatalf("got %v", got)
	}
}
