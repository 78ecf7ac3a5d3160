package sim

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/visagelabs/visage/pkg/media"
)

// clipFile creates an empty backing file for a test clip.
func clipFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// watcher collects clip events.
type watcher struct {
	mu     sync.Mutex
	loaded int
	failed []media.FailReason
	ended  chan struct{}
}

func newWatcher() *watcher {
	return &watcher{ended: make(chan struct{}, 8)}
}

func (w *watcher) events() media.Events {
	return media.Events{
		OnLoaded: func() {
			w.mu.Lock()
			w.loaded++
			w.mu.Unlock()
		},
		OnFailed: func(r media.FailReason) {
			w.mu.Lock()
			w.failed = append(w.failed, r)
			w.mu.Unlock()
		},
		OnEnded: func() {
			w.ended <- struct{}{}
		},
	}
}

func TestLoadExistingFile(t *testing.T) {
	c := New(clipFile(t, "idle.mp4"))
	w := newWatcher()
	c.Subscribe(w.events())

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loaded != 1 || len(w.failed) != 0 {
		t.Errorf("loaded = %d, failed = %v", w.loaded, w.failed)
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "nope.mp4"))
	w := newWatcher()
	c.Subscribe(w.events())

	if err := c.Load(context.Background()); err == nil {
		t.Fatal("Load should fail for a missing file")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.failed) != 1 || w.failed[0] != media.FailNotFound {
		t.Errorf("failed = %v, want [not-found]", w.failed)
	}
	if w.loaded != 0 {
		t.Errorf("loaded = %d, want 0", w.loaded)
	}
}

func TestLoadExpiredContextIsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(clipFile(t, "idle.mp4"))
	w := newWatcher()
	c.Subscribe(w.events())

	if err := c.Load(ctx); err == nil {
		t.Fatal("Load with an expired context should fail")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.failed) != 1 || w.failed[0] != media.FailTimeout {
		t.Errorf("failed = %v, want [timeout]", w.failed)
	}
}

func TestPlayBeforeLoadIsNoOp(t *testing.T) {
	c := New(clipFile(t, "idle.mp4"), WithDuration(time.Millisecond))
	w := newWatcher()
	c.Subscribe(w.events())

	c.Play()
	if c.Playing() {
		t.Error("unloaded clip should not play")
	}
	select {
	case <-w.ended:
		t.Error("unloaded clip should never end")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestShortClipEnds(t *testing.T) {
	c := New(clipFile(t, "greeting.mp4"), WithDuration(20*time.Millisecond))
	w := newWatcher()
	c.Subscribe(w.events())
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.Play()
	select {
	case <-w.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("clip did not end")
	}
	if c.Playing() {
		t.Error("ended clip should be stopped")
	}
	if got := c.Position(); got != 0 {
		t.Errorf("Position() after end = %v, want 0", got)
	}
}

func TestLoopingClipNeverEnds(t *testing.T) {
	c := New(clipFile(t, "idle.mp4"), WithDuration(10*time.Millisecond), WithLoop())
	w := newWatcher()
	c.Subscribe(w.events())
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.Play()
	select {
	case <-w.ended:
		t.Fatal("looping clip reported an end")
	case <-time.After(60 * time.Millisecond):
	}
	if !c.Playing() {
		t.Error("looping clip should still be playing")
	}
	c.Pause()
}

func TestPauseFreezesPosition(t *testing.T) {
	c := New(clipFile(t, "response.mp4"), WithDuration(time.Hour))
	w := newWatcher()
	c.Subscribe(w.events())
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.Play()
	time.Sleep(20 * time.Millisecond)
	c.Pause()

	pos := c.Position()
	if pos <= 0 {
		t.Fatalf("Position() = %v, want > 0", pos)
	}
	time.Sleep(20 * time.Millisecond)
	if got := c.Position(); got != pos {
		t.Errorf("Position() moved from %v to %v while paused", pos, got)
	}
}

func TestRewindResetsPosition(t *testing.T) {
	c := New(clipFile(t, "response.mp4"), WithDuration(time.Hour))
	w := newWatcher()
	c.Subscribe(w.events())
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.Play()
	time.Sleep(10 * time.Millisecond)
	c.Rewind()
	if !c.Playing() {
		t.Error("Rewind should not stop a playing clip")
	}
	c.Pause()
	c.Rewind()
	if got := c.Position(); got != 0 {
		t.Errorf("Position() = %v, want 0", got)
	}
	if c.Playing() {
		t.Error("Rewind should not start a paused clip")
	}
}

func TestMuted(t *testing.T) {
	if New("a").Muted() {
		t.Error("clips are unmuted by default")
	}
	if !New("a", WithMuted()).Muted() {
		t.Error("WithMuted not applied")
	}
}
