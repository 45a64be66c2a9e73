package app

import (
	"sync"
	"time"
)

// Timer drives a session countdown. Start calls tick once per elapsed second
// until the returned stop function is called. Stop must be safe to call while
// a tick is running on another goroutine.
type Timer interface {
	Start(tick func()) (stop func())
}

// SecondTimer is the wall-clock Timer.
type SecondTimer struct {
	Interval time.Duration
}

// NewSecondTimer ticks once per second.
func NewSecondTimer() SecondTimer {
	return SecondTimer{Interval: time.Second}
}

func (t SecondTimer) Start(tick func()) func() {
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				tick()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// ManualTimer ticks only when Advance is called. Useful for deterministic tests.
type ManualTimer struct {
	mu      sync.Mutex
	nextID  int
	running map[int]func()
}

func NewManualTimer() *ManualTimer {
	return &ManualTimer{running: make(map[int]func())}
}

func (t *ManualTimer) Start(tick func()) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.running[id] = tick
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.running, id)
		t.mu.Unlock()
	}
}

// Advance simulates n elapsed seconds on every running countdown.
func (t *ManualTimer) Advance(n int) {
	for i := 0; i < n; i++ {
		t.mu.Lock()
		ticks := make([]func(), 0, len(t.running))
		for _, tick := range t.running {
			ticks = append(ticks, tick)
		}
		t.mu.Unlock()

		for _, tick := range ticks {
			tick()
		}
	}
}

// Running reports how many countdowns have been started and not stopped.
func (t *ManualTimer) Running() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.running)
}
