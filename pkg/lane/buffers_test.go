package lane

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/james-see/patternsync/pkg/source"
)

func TestRefreshBuffers(t *testing.T) {
	r, _, _ := loaded(t)
	r.source.Update("drums.py", strings.Replace(drumsPy, "x...x...x...x...", "x.x.x.x.x.x.x.x.", 1))

	rep := r.RefreshBuffers()
	if strings.Join(rep.Updated, ",") != "kick" {
		t.Errorf("Updated = %v, want [kick]", rep.Updated)
	}
	if got := mustLane(t, r, "kick").Pattern(); got != "x.x.x.x.x.x.x.x." {
		t.Errorf("kick = %q", got)
	}
	if mustLane(t, r, "kick").LocallyModified {
		t.Error("buffer refresh should not mark lanes modified")
	}
}

func TestRefreshBuffersRespectsModified(t *testing.T) {
	r, _, _ := loaded(t)
	if err := r.ToggleStep("kick", 2); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}
	r.source.Update("drums.py", strings.Replace(drumsPy, "x...x...x...x...", "................", 1))

	rep := r.RefreshBuffers()
	if strings.Join(rep.Skipped, ",") != "kick" {
		t.Errorf("Skipped = %v, want [kick]", rep.Skipped)
	}
	if got := mustLane(t, r, "kick").Pattern(); got != "x.x.x...x...x..." {
		t.Errorf("kick = %q, edit was clobbered", got)
	}
}

func TestRefreshBuffersTracksMovedDefinition(t *testing.T) {
	r, _, _ := loaded(t)
	r.source.Update("drums.py", "# header\n# more\n"+drumsPy)
	r.RefreshBuffers()
	if got := mustLane(t, r, "kick").SourceLocation.Line; got != 4 {
		t.Errorf("kick line = %d, want 4", got)
	}
}

func TestRefreshBuffersSkipsMalformed(t *testing.T) {
	r, _, _ := loaded(t)
	r.source.Update("drums.py", strings.Replace(drumsPy, "x...x...x...x...", "x...x..?", 1))
	rep := r.RefreshBuffers()
	if _, ok := rep.Errors["kick"]; !ok {
		t.Error("malformed buffer text should be reported")
	}
	if got := mustLane(t, r, "kick").Pattern(); got != "x...x...x...x..." {
		t.Errorf("kick = %q, half-typed text should leave it", got)
	}
}

func TestRefreshBuffersIgnoresClosedFiles(t *testing.T) {
	r, _, disk := loaded(t)
	disk.files["drums.py"] = strings.Replace(drumsPy, "x...x...x...x...", "................", 1)
	rep := r.RefreshBuffers()
	if len(rep.Updated) != 0 {
		t.Errorf("Updated = %v, want none without open buffers", rep.Updated)
	}
}

func TestBufferChangedDebounces(t *testing.T) {
	var mu sync.Mutex
	passes := 0
	done := make(chan struct{}, 8)

	disk := &memStore{files: map[string]string{"drums.py": drumsPy}}
	r := New(Options{
		Source:   source.NewBuffers(disk),
		Debounce: 30 * time.Millisecond,
		Dispatch: func(f func()) { f() },
		OnChange: func(c Change) {
			if c.Reason != "buffers" {
				return
			}
			mu.Lock()
			passes++
			mu.Unlock()
			done <- struct{}{}
		},
	})
	if _, err := r.LoadGroup("drums", snapshot("x...x...x...x...", "....x.......x...")); err != nil {
		t.Fatal(err)
	}

	for _, kick := range []string{"x...............", "xx..............", "xxx............."} {
		r.BufferChanged("drums.py", strings.Replace(drumsPy, "x...x...x...x...", kick, 1))
	}
	if !r.Pending() {
		t.Error("a refresh should be pending")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced refresh never ran")
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if passes != 1 {
		t.Errorf("passes = %d, want 1", passes)
	}
	if got := mustLane(t, r, "kick").Pattern(); got != "xxx............." {
		t.Errorf("kick = %q, want the last change", got)
	}
	if r.Pending() {
		t.Error("nothing should be pending after the pass")
	}
}

func TestCancelPending(t *testing.T) {
	r, _, _ := loaded(t)
	r.BufferChanged("drums.py", strings.Replace(drumsPy, "x...x...x...x...", "................", 1))
	r.CancelPending()
	time.Sleep(60 * time.Millisecond)
	if got := mustLane(t, r, "kick").Pattern(); got != "x...x...x...x..." {
		t.Errorf("kick = %q, cancelled refresh ran", got)
	}
	r.BufferClosed("drums.py")
	if _, ok := r.source.Text("drums.py"); ok {
		t.Error("buffer should be closed")
	}
}
