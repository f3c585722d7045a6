package lane

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/grid"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/source"
)

const drumsPy = `kit = live.group("drums")
kit.pattern("kick", "x...x...x...x...")
kit.pattern(
    "snare",
    "....x.......x...",
)
`

type pushCall struct {
	name   string
	update runtime.PatternUpdate
}

type fakePusher struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
}

func (f *fakePusher) UpdatePattern(ctx context.Context, name string, update runtime.PatternUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{name: name, update: update})
	return f.err
}

func (f *fakePusher) last() pushCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return pushCall{}
	}
	return f.calls[len(f.calls)-1]
}

type memStore struct {
	mu    sync.Mutex
	files map[string]string
}

func (m *memStore) Read(file string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.files[file]
	if !ok {
		return "", os.ErrNotExist
	}
	return text, nil
}

func (m *memStore) Write(file, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file] = text
	return nil
}

func snapshot(kick, snare string) *runtime.Snapshot {
	return &runtime.Snapshot{
		Groups: []runtime.Group{{Name: "drums", Path: "drums"}, {Name: "bass", Path: "bass"}},
		Patterns: map[string]runtime.Pattern{
			"kick": {
				Name: "kick", Group: "drums", Voice: "808", StepPattern: kick, LoopBeats: 4,
				SourceLocation: &source.Location{File: "drums.py", Line: 2}, Status: runtime.StatusPlaying,
			},
			"snare": {
				Name: "snare", Group: "drums", Voice: "sn", StepPattern: snare, LoopBeats: 4,
				SourceLocation: &source.Location{File: "drums.py", Line: 3}, Status: runtime.StatusStopped,
			},
		},
		Voices: map[string]runtime.Voice{
			"808": {Name: "808", Group: "drums"},
			"sn":  {Name: "sn", Group: "drums"},
			"hat": {Name: "hat", Group: "drums"},
		},
	}
}

func newTestReconciler(t *testing.T) (*Reconciler, *fakePusher, *memStore) {
	t.Helper()
	pusher := &fakePusher{}
	disk := &memStore{files: map[string]string{"drums.py": drumsPy}}
	r := New(Options{
		Pusher:   pusher,
		Source:   source.NewBuffers(disk),
		Debounce: 20 * time.Millisecond,
		Dispatch: func(f func()) { f() },
	})
	return r, pusher, disk
}

func loaded(t *testing.T) (*Reconciler, *fakePusher, *memStore) {
	t.Helper()
	r, p, d := newTestReconciler(t)
	if _, err := r.LoadGroup("drums", snapshot("x...x...x...x...", "....x.......x...")); err != nil {
		t.Fatalf("LoadGroup() error = %v", err)
	}
	return r, p, d
}

func mustLane(t *testing.T, r *Reconciler, name string) Lane {
	t.Helper()
	l, ok := r.Lane(name)
	if !ok {
		t.Fatalf("lane %q missing", name)
	}
	return l
}

func TestLoadGroup(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	added, err := r.LoadGroup("drums", snapshot("x...x...x...x...", "....x.......x..."))
	if err != nil {
		t.Fatalf("LoadGroup() error = %v", err)
	}

	expected := []string{"kick", "snare", "hat_pattern"}
	if strings.Join(added, ",") != strings.Join(expected, ",") {
		t.Errorf("LoadGroup() added = %v, want %v", added, expected)
	}

	kick := mustLane(t, r, "kick")
	if kick.Authority() != SourceAuthoritative || !kick.IsPlaying || kick.Pattern() != "x...x...x...x..." {
		t.Errorf("kick = %+v", kick)
	}
	if kick.Color == "" || kick.Color == mustLane(t, r, "snare").Color {
		t.Error("lanes should get distinct colours")
	}

	hat := mustLane(t, r, "hat_pattern")
	if hat.Anchored() || hat.Authority() != UIAuthoritative || hat.Grid.Config != grid.DefaultConfig {
		t.Errorf("voice lane = %+v, want unanchored UI-authoritative default grid", hat)
	}
}

func TestLoadGroupNotFound(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	_, err := r.LoadGroup("keys", snapshot("x...", "x..."))
	if !errors.Is(err, ErrGroupNotFound) || apperr.HTTPStatus(err) != 404 {
		t.Errorf("LoadGroup() error = %v, want not found", err)
	}
	if len(r.Lanes()) != 0 || len(r.Groups()) != 0 {
		t.Error("failed load should not change state")
	}

	if _, err := New(Options{}).LoadGroup("drums", nil); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("LoadGroup(nil) error = %v, want ErrNoSnapshot", err)
	}
}

func TestAddPatternAndVoice(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	r.Refresh(snapshot("x...", "x..."))

	l, err := r.AddPattern("snare")
	if err != nil {
		t.Fatalf("AddPattern() error = %v", err)
	}
	if l.PatternName != "snare" || l.GroupPath != "drums" {
		t.Errorf("AddPattern() = %+v", l)
	}
	if _, err := r.AddPattern("clap"); !errors.Is(err, ErrPatternNotFound) {
		t.Errorf("AddPattern(clap) error = %v, want ErrPatternNotFound", err)
	}

	v, err := r.AddVoice("hat")
	if err != nil {
		t.Fatalf("AddVoice() error = %v", err)
	}
	if v.PatternName != "hat_pattern" || v.VoiceName != "hat" {
		t.Errorf("AddVoice() = %+v", v)
	}
	if _, err := r.AddVoice("cowbell"); !errors.Is(err, ErrVoiceNotFound) {
		t.Errorf("AddVoice(cowbell) error = %v, want ErrVoiceNotFound", err)
	}
	if len(r.Lanes()) != 2 {
		t.Errorf("Lanes() = %d, want 2", len(r.Lanes()))
	}
}

func TestRemove(t *testing.T) {
	r, _, _ := loaded(t)
	if err := r.Remove("kick"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := r.Lane("kick"); ok {
		t.Error("kick should be gone")
	}
	if err := r.Remove("kick"); !errors.Is(err, ErrLaneNotFound) {
		t.Errorf("Remove() error = %v, want ErrLaneNotFound", err)
	}
}

func TestRefreshUpdatesSourceAuthoritative(t *testing.T) {
	r, _, _ := loaded(t)

	rep := r.Refresh(snapshot("x.x.x.x.x.x.x.x.", "....x.......x..."))
	if strings.Join(rep.Updated, ",") != "kick" {
		t.Errorf("Updated = %v, want [kick]", rep.Updated)
	}
	if strings.Join(rep.Unchanged, ",") != "snare" {
		t.Errorf("Unchanged = %v, want [snare]", rep.Unchanged)
	}
	if got := mustLane(t, r, "kick").Pattern(); got != "x.x.x.x.x.x.x.x." {
		t.Errorf("kick = %q, want x.x.x.x.x.x.x.x.", got)
	}
}

func TestRefreshIdempotent(t *testing.T) {
	r, _, _ := loaded(t)
	before := mustLane(t, r, "kick").Grid

	for i := 0; i < 3; i++ {
		rep := r.Refresh(snapshot("x...x...x...x...", "....x.......x..."))
		if len(rep.Updated) != 0 {
			t.Errorf("pass %d Updated = %v, want none", i, rep.Updated)
		}
	}
	if !mustLane(t, r, "kick").Grid.Equal(before) {
		t.Error("unchanged source should not mutate the grid")
	}
}

func TestRefreshNormalizesEquivalentText(t *testing.T) {
	r, _, _ := loaded(t)
	rep := r.Refresh(snapshot("x---x---x---x---", "....x.......x..."))
	if len(rep.Updated) != 0 {
		t.Errorf("Updated = %v, want none for equivalent rest characters", rep.Updated)
	}
}

func TestModifiedLaneSurvivesSnapshots(t *testing.T) {
	r, _, _ := loaded(t)
	if err := r.ToggleStep("kick", 1); err != nil {
		t.Fatal(err)
	}
	edited := mustLane(t, r, "kick")

	for _, kick := range []string{"x...x...x...x...", "................", "XXXXXXXXXXXXXXXX", "oops|bad"} {
		rep := r.Refresh(snapshot(kick, "....x.......x..."))
		if len(rep.Skipped) != 1 || rep.Skipped[0] != "kick" {
			t.Errorf("Skipped = %v, want [kick]", rep.Skipped)
		}
		got := mustLane(t, r, "kick")
		if !got.Grid.Equal(edited.Grid) || got.Authority() != UIAuthoritative {
			t.Fatalf("refresh with %q clobbered a modified lane: %q", kick, got.Pattern())
		}
	}
}

func TestModifiedLaneStillTracksPlayState(t *testing.T) {
	r, _, _ := loaded(t)
	if err := r.Clear("kick"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	snap := snapshot("x...x...x...x...", "....x.......x...")
	p := snap.Patterns["kick"]
	p.Status = runtime.StatusStopped
	snap.Patterns["kick"] = p
	r.Refresh(snap)
	if mustLane(t, r, "kick").IsPlaying {
		t.Error("play state should follow the runtime even for modified lanes")
	}
}

func TestRefreshMalformedFallsBackToEmpty(t *testing.T) {
	r, _, _ := loaded(t)
	rep := r.Refresh(snapshot("x...|x..", "....x.......x..."))

	if _, ok := rep.Errors["kick"]; !ok {
		t.Error("malformed kick should be reported")
	}
	kick := mustLane(t, r, "kick")
	if kick.Grid.Config != grid.DefaultConfig || kick.Grid.Hits() != 0 {
		t.Errorf("kick = %q, want empty default grid", kick.Pattern())
	}
	if mustLane(t, r, "snare").Pattern() != "....x.......x..." {
		t.Error("a bad lane must not affect the others")
	}
}

func TestRefreshAddsAndRemoves(t *testing.T) {
	r, _, _ := loaded(t)

	snap := snapshot("x...x...x...x...", "....x.......x...")
	snap.Patterns["clap"] = runtime.Pattern{Name: "clap", Group: "drums", StepPattern: "..x...x.", LoopBeats: 2}
	snap.Patterns["bassline"] = runtime.Pattern{Name: "bassline", Group: "bass", StepPattern: "x.x.", LoopBeats: 4}
	delete(snap.Patterns, "snare")

	rep := r.Refresh(snap)
	if strings.Join(rep.Added, ",") != "clap" {
		t.Errorf("Added = %v, want [clap] (bass is not loaded)", rep.Added)
	}
	if strings.Join(rep.Removed, ",") != "snare" {
		t.Errorf("Removed = %v, want [snare]", rep.Removed)
	}
	if _, ok := r.Lane("hat_pattern"); !ok {
		t.Error("voice lane should stay while its voice exists")
	}
	if got := mustLane(t, r, "clap").Grid.BeatsPerBar; got != 2 {
		t.Errorf("clap beatsPerBar = %d, want 2", got)
	}
}

// The runtime removing a pattern would drop the lane by name presence alone,
// losing unsaved edits. Modified lanes are retained instead and reported.
func TestRefreshRetainsModifiedLaneWhosePatternVanished(t *testing.T) {
	r, _, _ := loaded(t)
	if err := r.ToggleStep("snare", 0); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}

	snap := snapshot("x...x...x...x...", "")
	delete(snap.Patterns, "snare")
	rep := r.Refresh(snap)

	if strings.Join(rep.Retained, ",") != "snare" {
		t.Errorf("Retained = %v, want [snare]", rep.Retained)
	}
	if len(rep.Removed) != 0 {
		t.Errorf("Removed = %v, want none", rep.Removed)
	}
	if l := mustLane(t, r, "snare"); l.IsPlaying || l.Authority() != UIAuthoritative {
		t.Errorf("snare = %+v", l)
	}
}

func TestRefreshVoiceLaneWhenVoiceVanishes(t *testing.T) {
	r, _, _ := loaded(t)
	snap := snapshot("x...x...x...x...", "....x.......x...")
	delete(snap.Voices, "hat")
	rep := r.Refresh(snap)
	if strings.Join(rep.Removed, ",") != "hat_pattern" {
		t.Errorf("Removed = %v, want [hat_pattern] for an empty voice lane", rep.Removed)
	}

	r, _, _ = loaded(t)
	if err := r.ToggleStep("hat_pattern", 0); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}
	rep = r.Refresh(snap)
	if strings.Join(rep.Retained, ",") != "hat_pattern" {
		t.Errorf("Retained = %v, want [hat_pattern] once it holds hits", rep.Retained)
	}
}

func TestEditsMarkModifiedAndPush(t *testing.T) {
	r, pusher, _ := loaded(t)

	tests := []struct {
		name     string
		edit     func() error
		expected string
	}{
		{"toggle", func() error { return r.ToggleStep("snare", 0) }, "x...x.......x..."},
		{"velocity", func() error { return r.SetVelocity("snare", 4, 5.0/9) }, "x...5.......x..."},
		{"accent", func() error { return r.SetAccent("snare", 2, true) }, "x.X.5.......x..."},
		{"set", func() error { return r.SetStep("snare", 1, grid.Step{Velocity: 3}) }, "xxX.5.......x..."},
		{"shift", func() error { return r.Shift("snare", []int{12}, 2) }, "xxX.5.........x."},
		{"euclid", func() error { _, err := r.ApplyEuclidean("snare", 4); return err }, "x...x...x...x..."},
		{"clear", func() error { return r.Clear("snare") }, "................"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.edit(); err != nil {
				t.Fatalf("edit error = %v", err)
			}
			l := mustLane(t, r, "snare")
			if l.Pattern() != tt.expected {
				t.Errorf("pattern = %q, want %q", l.Pattern(), tt.expected)
			}
			if l.Authority() != UIAuthoritative {
				t.Error("edit should make the lane UI-authoritative")
			}
			call := pusher.last()
			if call.name != "snare" || call.update.PatternString != tt.expected || call.update.LoopBeats != 4 {
				t.Errorf("push = %+v", call)
			}
		})
	}
}

func TestResize(t *testing.T) {
	r, pusher, _ := loaded(t)
	if err := r.Resize("kick", grid.Config{StepsPerBar: 16, NumBars: 2, BeatsPerBar: 4}); err != nil {
		t.Fatal(err)
	}
	if got := mustLane(t, r, "kick").Pattern(); got != "x...x...x...x...|x...x...x...x..." {
		t.Errorf("Resize() = %q", got)
	}
	if pusher.last().update.LoopBeats != 8 {
		t.Errorf("pushed loop = %v, want 8", pusher.last().update.LoopBeats)
	}
	if err := r.Resize("kick", grid.Config{}); !errors.Is(err, ErrBadGeometry) {
		t.Errorf("Resize(zero) error = %v, want ErrBadGeometry", err)
	}
}

func TestEditErrors(t *testing.T) {
	r, pusher, _ := loaded(t)
	if err := r.ToggleStep("nope", 0); !errors.Is(err, ErrLaneNotFound) {
		t.Errorf("ToggleStep(nope) error = %v, want ErrLaneNotFound", err)
	}
	if err := r.ToggleStep("kick", -1); !errors.Is(err, ErrBadStep) {
		t.Errorf("ToggleStep(-1) error = %v, want ErrBadStep", err)
	}
	if mustLane(t, r, "kick").LocallyModified {
		t.Error("failed edits should not mark the lane")
	}
	if len(pusher.calls) != 0 {
		t.Errorf("pushes = %d, want 0", len(pusher.calls))
	}
}

func TestEditPastEndGrows(t *testing.T) {
	r, _, _ := loaded(t)
	if err := r.SetStep("kick", 20, grid.Hit); err != nil {
		t.Fatal(err)
	}
	if got := len(mustLane(t, r, "kick").Grid.Steps); got != 21 {
		t.Errorf("len(Steps) = %d, want 21", got)
	}
}

func TestPushFailureIsNotAnError(t *testing.T) {
	r, pusher, _ := loaded(t)
	pusher.err = errors.New("connection refused")
	if err := r.ToggleStep("kick", 1); err != nil {
		t.Errorf("ToggleStep() error = %v, want nil when the runtime rejects", err)
	}
	if mustLane(t, r, "kick").Pattern() != "xx..x...x...x..." {
		t.Error("edit should apply regardless of the runtime")
	}
}

func TestWriteBack(t *testing.T) {
	r, _, disk := loaded(t)
	if err := r.ToggleStep("snare", 0); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}

	if st := r.WritebackStatus(); strings.Join(st.Pending, ",") != "snare" || strings.Join(st.Unanchored, ",") != "hat_pattern" {
		t.Errorf("WritebackStatus() = %+v", st)
	}

	if err := r.WriteBack("snare"); err != nil {
		t.Fatalf("WriteBack() error = %v", err)
	}
	l := mustLane(t, r, "snare")
	if l.Authority() != SourceAuthoritative {
		t.Error("successful write-back should return the lane to source authority")
	}
	if l.SourceLocation.Line != 5 {
		t.Errorf("SourceLocation.Line = %d, want 5", l.SourceLocation.Line)
	}
	if !strings.Contains(disk.files["drums.py"], `"x...x.......x...",`) {
		t.Errorf("source not rewritten:\n%s", disk.files["drums.py"])
	}

	// The runtime now reports the written text; the refresh is a no-op
	rep := r.Refresh(snapshot("x...x...x...x...", "x...x.......x..."))
	if len(rep.Updated) != 0 || len(rep.Skipped) != 0 {
		t.Errorf("post write-back refresh = %+v, want no updates or skips", rep)
	}
	if mustLane(t, r, "snare").Pattern() != "x...x.......x..." {
		t.Error("snare changed after write-back round trip")
	}
}

func TestWriteBackSiteNotFound(t *testing.T) {
	r, _, disk := loaded(t)
	disk.files["drums.py"] = "# definitions moved\n"
	if err := r.ToggleStep("kick", 1); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}

	err := r.WriteBack("kick")
	if !errors.Is(err, source.ErrLineRange) && !errors.Is(err, source.ErrSiteNotFound) {
		t.Errorf("WriteBack() error = %v, want a missing-site error", err)
	}
	if !apperr.Is(err, apperr.SyncFailed) {
		t.Error("write-back failures should carry the SyncFailed tag")
	}
	if mustLane(t, r, "kick").Authority() != UIAuthoritative {
		t.Error("failed write-back should leave the lane UI-authoritative")
	}
}

func TestWriteBackUnanchored(t *testing.T) {
	r, _, _ := loaded(t)
	if err := r.ToggleStep("hat_pattern", 0); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}
	if err := r.WriteBack("hat_pattern"); !errors.Is(err, ErrNoSourceLocation) {
		t.Errorf("WriteBack() error = %v, want ErrNoSourceLocation", err)
	}
	if err := r.WriteBack("nope"); !errors.Is(err, ErrLaneNotFound) {
		t.Errorf("WriteBack(nope) error = %v, want ErrLaneNotFound", err)
	}
}

func TestUnanchoredLaneAdoptsLocation(t *testing.T) {
	r, _, _ := loaded(t)
	if err := r.ToggleStep("hat_pattern", 0); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}

	snap := snapshot("x...x...x...x...", "....x.......x...")
	snap.Patterns["hat_pattern"] = runtime.Pattern{
		Name: "hat_pattern", Group: "drums", Voice: "hat", StepPattern: "x...............", LoopBeats: 4,
		SourceLocation: &source.Location{File: "drums.py", Line: 7},
	}
	r.Refresh(snap)

	l := mustLane(t, r, "hat_pattern")
	if !l.Anchored() || l.Pattern() != "x..............." || l.Authority() != UIAuthoritative {
		t.Errorf("hat_pattern = %+v", l)
	}
	if st := r.WritebackStatus(); strings.Join(st.Pending, ",") != "hat_pattern" {
		t.Errorf("Pending = %v, want [hat_pattern]", st.Pending)
	}
}

func TestWriteBackAll(t *testing.T) {
	r, _, disk := loaded(t)
	if err := r.Clear("kick"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := r.Clear("snare"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	disk.files["drums.py"] = strings.Replace(drumsPy, `"snare"`, `"renamed"`, 1)

	failed := r.WriteBackAll()
	if len(failed) != 1 || failed["snare"] == nil {
		t.Errorf("WriteBackAll() failed = %v, want only snare", failed)
	}
	if mustLane(t, r, "kick").LocallyModified {
		t.Error("kick should have been written back")
	}
}

func TestOnChange(t *testing.T) {
	var reasons []string
	r := New(Options{OnChange: func(c Change) { reasons = append(reasons, c.Reason) }})
	if _, err := r.LoadGroup("drums", snapshot("x...", "x...")); err != nil {
		t.Fatalf("LoadGroup() error = %v", err)
	}
	if err := r.ToggleStep("kick", 0); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}
	r.Refresh(snapshot("x...", "x..."))
	if err := r.Remove("kick"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if got := strings.Join(reasons, ","); got != "load,edit,refresh,remove" {
		t.Errorf("changes = %s, want load,edit,refresh,remove", got)
	}
}

// slowPusher delays the first update so later ones would overtake it if sent concurrently
type slowPusher struct {
	fakePusher
	delay time.Duration
	once  sync.Once
}

func (s *slowPusher) UpdatePattern(ctx context.Context, name string, update runtime.PatternUpdate) error {
	s.once.Do(func() { time.Sleep(s.delay) })
	return s.fakePusher.UpdatePattern(ctx, name, update)
}

func TestPushesEndOnLatestGrid(t *testing.T) {
	pusher := &slowPusher{delay: 50 * time.Millisecond}
	r := New(Options{Pusher: pusher, Source: source.NewBuffers(&memStore{files: map[string]string{}})})
	if _, err := r.LoadGroup("drums", snapshot("x...x...x...x...", "....x.......x...")); err != nil {
		t.Fatalf("LoadGroup() error = %v", err)
	}

	for _, step := range []int{1, 2, 3} {
		if err := r.ToggleStep("kick", step); err != nil {
			t.Fatalf("ToggleStep() error = %v", err)
		}
	}
	want := mustLane(t, r, "kick").Pattern()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && pusher.last().update.PatternString != want {
		time.Sleep(5 * time.Millisecond)
	}
	// let any straggler land before checking the final state
	time.Sleep(100 * time.Millisecond)

	pusher.mu.Lock()
	calls := append([]pushCall(nil), pusher.calls...)
	pusher.mu.Unlock()
	if len(calls) == 0 || calls[len(calls)-1].update.PatternString != want {
		t.Fatalf("runtime updates = %v, want last %q", calls, want)
	}
	if len(calls) > 2 {
		t.Errorf("runtime got %d updates, want superseded ones dropped", len(calls))
	}
}

func TestRefreshLoopBeatsChange(t *testing.T) {
	r, pusher, _ := loaded(t)

	snap := snapshot("x...x...x...x...", "....x.......x...")
	kick := snap.Patterns["kick"]
	kick.LoopBeats = 8
	snap.Patterns["kick"] = kick

	rep := r.Refresh(snap)
	if strings.Join(rep.Updated, ",") != "kick" {
		t.Fatalf("Updated = %v, want [kick] when only the loop length changed", rep.Updated)
	}
	if got := mustLane(t, r, "kick").Grid.LoopBeats(); got != 8 {
		t.Errorf("LoopBeats() = %v, want 8", got)
	}

	if err := r.ToggleStep("kick", 1); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}
	if got := pusher.last().update.LoopBeats; got != 8 {
		t.Errorf("pushed LoopBeats = %v, want 8", got)
	}

	if rep := r.Refresh(snap); len(rep.Updated) != 0 {
		t.Errorf("Updated = %v on an unchanged snapshot", rep.Updated)
	}
}
