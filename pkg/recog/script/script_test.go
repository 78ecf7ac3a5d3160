package script

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/visagelabs/visage/pkg/recog"
)

// recorder collects engine events for assertions.
type recorder struct {
	mu      sync.Mutex
	results []string
	ends    int
	ended   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ended: make(chan struct{}, 8)}
}

func (r *recorder) events() recog.Events {
	return recog.Events{
		OnResult: func(text string) {
			r.mu.Lock()
			r.results = append(r.results, text)
			r.mu.Unlock()
		},
		OnEnd: func() {
			r.mu.Lock()
			r.ends++
			r.mu.Unlock()
			r.ended <- struct{}{}
		},
	}
}

func (r *recorder) waitEnd(t *testing.T) {
	t.Helper()
	select {
	case <-r.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("attempt did not end in time")
	}
}

func TestDeliversLinesInOrder(t *testing.T) {
	e := New([]Line{
		{Text: "Hello there", Delay: 10 * time.Millisecond},
		{Text: "bye", Delay: 10 * time.Millisecond},
	})
	rec := newRecorder()
	e.Subscribe(rec.events())

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.waitEnd(t)

	if err := e.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	rec.waitEnd(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.results) != 2 || rec.results[0] != "Hello there" || rec.results[1] != "bye" {
		t.Errorf("results = %v", rec.results)
	}
	if rec.ends != 2 {
		t.Errorf("ends = %d, want 2 (one per attempt)", rec.ends)
	}
}

func TestStartWhileRunningIsBusy(t *testing.T) {
	e := New([]Line{{Text: "hi", Delay: time.Second}})
	rec := newRecorder()
	e.Subscribe(rec.events())

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if err := e.Start(); !errors.Is(err, recog.ErrBusy) {
		t.Errorf("second Start err = %v, want ErrBusy", err)
	}
}

func TestStopCancelsPendingLine(t *testing.T) {
	e := New([]Line{{Text: "hi", Delay: 5 * time.Second}})
	rec := newRecorder()
	e.Subscribe(rec.events())

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Stop()
	rec.waitEnd(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.results) != 0 {
		t.Errorf("results = %v, want none after stop", rec.results)
	}
	if rec.ends != 1 {
		t.Errorf("ends = %d, want 1", rec.ends)
	}
	if got := e.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d; an interrupted line is consumed", got)
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	e := New(nil)
	rec := newRecorder()
	e.Subscribe(rec.events())

	e.Stop()
	e.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.ends != 0 {
		t.Errorf("ends = %d, want 0 for stop without start", rec.ends)
	}
}

func TestExhaustedScriptIdlesUntilStopped(t *testing.T) {
	e := New(nil)
	rec := newRecorder()
	e.Subscribe(rec.events())

	if err := e.Start(); err != nil {
		t.Fatalf("Start on empty script: %v", err)
	}
	// Nothing arrives on its own.
	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	if rec.ends != 0 || len(rec.results) != 0 {
		rec.mu.Unlock()
		t.Fatal("exhausted attempt should stay silent until stopped")
	}
	rec.mu.Unlock()

	e.Stop()
	rec.waitEnd(t)
}

func TestRewindReplaysScript(t *testing.T) {
	e := New([]Line{{Text: "hi", Delay: time.Millisecond}})
	rec := newRecorder()
	e.Subscribe(rec.events())

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.waitEnd(t)
	if got := e.Remaining(); got != 0 {
		t.Fatalf("Remaining() = %d, want 0", got)
	}

	e.Rewind()
	if got := e.Remaining(); got != 1 {
		t.Errorf("Remaining() after Rewind = %d, want 1", got)
	}
}
