package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFakeAfterFuncOrder(t *testing.T) {
	c := Fake(epoch)
	var got []string
	c.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	c.AfterFunc(time.Second, func() { got = append(got, "a") })
	c.AfterFunc(2*time.Second, func() { got = append(got, "c") })

	c.Advance(1500 * time.Millisecond)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("after 1.5s got %v", got)
	}
	c.Advance(time.Second)
	if len(got) != 3 || got[1] != "b" || got[2] != "c" {
		t.Fatalf("after 2.5s got %v", got)
	}
}

func TestFakeChainedTimersAreRelative(t *testing.T) {
	c := Fake(epoch)
	var fired []time.Time
	c.AfterFunc(500*time.Millisecond, func() {
		fired = append(fired, c.Now())
		c.AfterFunc(time.Second, func() {
			fired = append(fired, c.Now())
		})
	})
	c.Advance(5 * time.Second)
	if len(fired) != 2 {
		t.Fatalf("expected 2 callbacks, got %d", len(fired))
	}
	if !fired[0].Equal(epoch.Add(500*time.Millisecond)) || !fired[1].Equal(epoch.Add(1500*time.Millisecond)) {
		t.Fatalf("unexpected fire times %v", fired)
	}
	if !c.Now().Equal(epoch.Add(5 * time.Second)) {
		t.Fatalf("clock at %v", c.Now())
	}
}

func TestFakeStop(t *testing.T) {
	c := Fake(epoch)
	ran := false
	timer := c.AfterFunc(time.Second, func() { ran = true })
	if !timer.Stop() {
		t.Fatalf("stop should report pending timer")
	}
	c.Advance(2 * time.Second)
	if ran {
		t.Fatalf("stopped timer fired")
	}
	if timer.Stop() {
		t.Fatalf("second stop should be false")
	}
}

func TestFakeAfterAndWait(t *testing.T) {
	c := Fake(epoch)
	done := make(chan time.Time)
	go func() { done <- <-c.After(time.Minute) }()
	c.WaitForTimers(1)
	c.Advance(time.Minute)
	if got := <-done; !got.Equal(epoch.Add(time.Minute)) {
		t.Fatalf("after fired at %v", got)
	}
	if c.Pending() != 0 {
		t.Fatalf("pending %d", c.Pending())
	}
}
