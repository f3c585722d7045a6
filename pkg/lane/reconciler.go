package lane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/converter"
	"github.com/james-see/patternsync/pkg/grid"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/source"
)

// DefaultDebounce coalesces bursts of buffer edits into one refresh
const DefaultDebounce = 300 * time.Millisecond

// pushTimeout bounds a single live-update call
const pushTimeout = 2 * time.Second

var (
	ErrLaneNotFound     = errors.New("lane not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrPatternNotFound  = errors.New("pattern not found")
	ErrVoiceNotFound    = errors.New("voice not found")
	ErrNoSnapshot       = errors.New("no runtime state received yet")
	ErrNoSourceLocation = errors.New("lane has no source location")
	ErrBadStep          = errors.New("step index out of range")
	ErrBadGeometry      = errors.New("grid geometry must be positive")
)

// Pusher sends edited patterns to the running engine without saving them
type Pusher interface {
	UpdatePattern(ctx context.Context, name string, update runtime.PatternUpdate) error
}

// Change describes a mutation the view should redraw for
type Change struct {
	Reason string         `json:"reason"` // load, add, remove, edit, refresh, buffers, writeback
	Lane   string         `json:"lane,omitempty"`
	Report *RefreshReport `json:"report,omitempty"`
}

// RefreshReport summarizes one reconciliation pass
type RefreshReport struct {
	Updated   []string          `json:"updated,omitempty"`
	Unchanged []string          `json:"unchanged,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"`  // UI-authoritative
	Added     []string          `json:"added,omitempty"`
	Removed   []string          `json:"removed,omitempty"`
	Retained  []string          `json:"retained,omitempty"` // vanished from runtime but holding unsaved edits
	Errors    map[string]string `json:"errors,omitempty"`
}

func (r *RefreshReport) fail(name string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[name] = err.Error()
}

// WritebackStatus separates lanes waiting on write-back from lanes that can never be written
type WritebackStatus struct {
	Pending    []string `json:"pending"`
	Unanchored []string `json:"unanchored"`
}

// Options configures a Reconciler
type Options struct {
	Pusher   Pusher
	Source   *source.Buffers
	Locator  *source.Locator
	Debounce time.Duration
	Logger   *slog.Logger
	OnChange func(Change)

	// Geometry sizes new voice lanes. Defaults to grid.DefaultConfig.
	Geometry grid.Config

	// Dispatch runs fire-and-forget work. Defaults to a new goroutine.
	Dispatch func(func())
}

// pushSlot holds the newest live update not yet sent for one lane
type pushSlot struct {
	next *runtime.PatternUpdate
	busy bool
}

// Reconciler owns the lane collection. All methods are safe to call from
// concurrent handlers; they are serialized so they behave as one event loop.
type Reconciler struct {
	mu       sync.Mutex
	lanes    map[string]*Lane
	order    []string
	groups   map[string]bool
	snapshot *runtime.Snapshot
	colors   int

	pusher   Pusher
	source   *source.Buffers
	locator  *source.Locator
	dispatch func(func())
	onChange func(Change)
	log      *slog.Logger
	geometry grid.Config

	pushMu sync.Mutex
	pushes map[string]*pushSlot

	debounce   time.Duration
	pending    *time.Timer
	pendingGen uint64
}

// New creates a Reconciler
func New(opts Options) *Reconciler {
	r := &Reconciler{
		lanes:    make(map[string]*Lane),
		groups:   make(map[string]bool),
		pushes:   make(map[string]*pushSlot),
		pusher:   opts.Pusher,
		source:   opts.Source,
		locator:  opts.Locator,
		dispatch: opts.Dispatch,
		onChange: opts.OnChange,
		log:      opts.Logger,
		debounce: opts.Debounce,
		geometry: opts.Geometry,
	}
	if r.geometry.Total() == 0 {
		r.geometry = grid.DefaultConfig
	}
	if r.locator == nil {
		r.locator = source.NewLocator(0, nil)
	}
	if r.dispatch == nil {
		r.dispatch = func(f func()) { go f() }
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.debounce <= 0 {
		r.debounce = DefaultDebounce
	}
	return r
}

// Lanes returns copies of all lanes in creation order
func (r *Reconciler) Lanes() []Lane {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Lane, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.lanes[name].clone())
	}
	return out
}

// Lane returns a copy of the named lane
func (r *Reconciler) Lane(name string) (Lane, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lanes[name]
	if !ok {
		return Lane{}, false
	}
	return l.clone(), true
}

// Snapshot returns the last runtime state seen
func (r *Reconciler) Snapshot() *runtime.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Groups returns loaded group paths in order
func (r *Reconciler) Groups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// WritebackStatus lists UI-authoritative lanes by whether they can be written back
func (r *Reconciler) WritebackStatus() WritebackStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := WritebackStatus{Pending: []string{}, Unanchored: []string{}}
	for _, name := range r.order {
		l := r.lanes[name]
		if !l.LocallyModified {
			continue
		}
		if l.Anchored() {
			st.Pending = append(st.Pending, name)
		} else {
			st.Unanchored = append(st.Unanchored, name)
		}
	}
	return st
}

// LoadGroup creates lanes for every pattern in a group, plus an empty lane
// for each voice in the group that has no pattern. A nil snap uses the last
// refreshed state. Nothing changes when the group is unknown.
func (r *Reconciler) LoadGroup(path string, snap *runtime.Snapshot) ([]string, error) {
	r.mu.Lock()
	if snap == nil {
		snap = r.snapshot
	}
	if snap == nil {
		r.mu.Unlock()
		return nil, apperr.NotFound(ErrNoSnapshot, "no runtime state received yet")
	}
	if _, ok := snap.FindGroup(path); !ok {
		r.mu.Unlock()
		return nil, apperr.NotFound(fmt.Errorf("%q: %w", path, ErrGroupNotFound), fmt.Sprintf("group %s not found", path))
	}

	r.snapshot = snap
	r.groups[path] = true

	var added []string
	voiced := make(map[string]bool)
	patterns := snap.PatternsInGroup(path)
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Name < patterns[j].Name })
	for _, p := range patterns {
		if p.Voice != "" {
			voiced[p.Voice] = true
		}
		if _, ok := r.lanes[p.Name]; ok {
			continue
		}
		r.insert(r.fromPattern(p))
		added = append(added, p.Name)
	}

	voices := snap.VoicesInGroup(path)
	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
	for _, v := range voices {
		if voiced[v.Name] {
			continue
		}
		name := voiceLaneName(v.Name)
		if _, ok := r.lanes[name]; ok {
			continue
		}
		r.insert(r.fromVoice(v))
		added = append(added, name)
	}
	r.mu.Unlock()

	r.notify(Change{Reason: "load", Lane: path})
	return added, nil
}

// AddPattern creates a lane for a runtime pattern by name
func (r *Reconciler) AddPattern(name string) (Lane, error) {
	r.mu.Lock()
	if l, ok := r.lanes[name]; ok {
		out := l.clone()
		r.mu.Unlock()
		return out, nil
	}
	if r.snapshot == nil {
		r.mu.Unlock()
		return Lane{}, apperr.NotFound(ErrNoSnapshot, "no runtime state received yet")
	}
	p, ok := r.snapshot.Patterns[name]
	if !ok {
		r.mu.Unlock()
		return Lane{}, apperr.NotFound(fmt.Errorf("%q: %w", name, ErrPatternNotFound), fmt.Sprintf("pattern %s not found", name))
	}
	l := r.fromPattern(p)
	r.insert(l)
	out := l.clone()
	r.mu.Unlock()

	r.notify(Change{Reason: "add", Lane: name})
	return out, nil
}

// AddVoice creates an empty lane for a voice that has no pattern yet. The
// lane has no source location, so it starts UI-authoritative and stays so.
func (r *Reconciler) AddVoice(voice string) (Lane, error) {
	r.mu.Lock()
	name := voiceLaneName(voice)
	if l, ok := r.lanes[name]; ok {
		out := l.clone()
		r.mu.Unlock()
		return out, nil
	}
	if r.snapshot == nil {
		r.mu.Unlock()
		return Lane{}, apperr.NotFound(ErrNoSnapshot, "no runtime state received yet")
	}
	v, ok := r.snapshot.Voices[voice]
	if !ok {
		r.mu.Unlock()
		return Lane{}, apperr.NotFound(fmt.Errorf("%q: %w", voice, ErrVoiceNotFound), fmt.Sprintf("voice %s not found", voice))
	}
	l := r.fromVoice(v)
	r.insert(l)
	out := l.clone()
	r.mu.Unlock()

	r.notify(Change{Reason: "add", Lane: name})
	return out, nil
}

// Remove deletes a lane, discarding any unsaved edits
func (r *Reconciler) Remove(name string) error {
	r.mu.Lock()
	if _, ok := r.lanes[name]; !ok {
		r.mu.Unlock()
		return notFound(name)
	}
	r.delete(name)
	r.mu.Unlock()

	r.notify(Change{Reason: "remove", Lane: name})
	return nil
}

// Refresh merges a runtime snapshot into the lanes. Source-authoritative
// lanes are re-derived from the pattern text when it differs from their
// encoded grid; UI-authoritative lanes keep their grids. Patterns new to a
// loaded group get lanes. Lanes whose pattern vanished are removed unless
// they hold unsaved edits, in which case they are reported as retained.
func (r *Reconciler) Refresh(snap *runtime.Snapshot) RefreshReport {
	var rep RefreshReport
	if snap == nil {
		return rep
	}

	r.mu.Lock()
	r.snapshot = snap
	for _, name := range append([]string(nil), r.order...) {
		r.refreshLane(r.lanes[name], snap, &rep)
	}

	for _, path := range sortedKeys(r.groups) {
		if _, ok := snap.FindGroup(path); !ok {
			continue
		}
		patterns := snap.PatternsInGroup(path)
		sort.Slice(patterns, func(i, j int) bool { return patterns[i].Name < patterns[j].Name })
		for _, p := range patterns {
			if _, ok := r.lanes[p.Name]; ok {
				continue
			}
			l := r.fromPattern(p)
			r.insert(l)
			rep.Added = append(rep.Added, p.Name)
			if _, err := converter.Decode(p.StepPattern); err != nil {
				rep.fail(p.Name, err)
			}
		}
	}
	r.mu.Unlock()

	r.log.Debug("lane refresh",
		"updated", len(rep.Updated), "added", len(rep.Added),
		"removed", len(rep.Removed), "retained", len(rep.Retained),
		"skipped", len(rep.Skipped), "errors", len(rep.Errors))
	r.notify(Change{Reason: "refresh", Report: &rep})
	return rep
}

// refreshLane reconciles one lane. A panic here is contained so the pass
// continues with the remaining lanes.
func (r *Reconciler) refreshLane(l *Lane, snap *runtime.Snapshot, rep *RefreshReport) {
	defer func() {
		if p := recover(); p != nil {
			rep.fail(l.PatternName, fmt.Errorf("refresh panicked: %v", p))
			r.log.Error("lane refresh panicked", "lane", l.PatternName, "panic", p)
		}
	}()

	p, ok := snap.Patterns[l.PatternName]
	if !ok {
		r.refreshUnbacked(l, snap, rep)
		return
	}

	l.backed = true
	l.IsPlaying = p.Playing()
	if p.Group != "" {
		l.GroupPath = p.Group
	}
	if p.Voice != "" {
		l.VoiceName = p.Voice
	}

	if l.LocallyModified {
		// An unanchored lane may gain a definition site, which does not touch its grid
		if l.SourceLocation == nil && p.SourceLocation != nil {
			loc := *p.SourceLocation
			l.SourceLocation = &loc
		}
		rep.Skipped = append(rep.Skipped, l.PatternName)
		return
	}

	if p.SourceLocation != nil {
		loc := *p.SourceLocation
		l.SourceLocation = &loc
	}

	sameLoop := p.LoopBeats <= 0 || l.Grid.LoopBeats() == p.LoopBeats
	if sameLoop && converter.Encode(l.Grid) == p.StepPattern {
		rep.Unchanged = append(rep.Unchanged, l.PatternName)
		return
	}
	g, err := converter.DecodeOrDefault(p.StepPattern, p.LoopBeats)
	if err != nil {
		rep.fail(l.PatternName, err)
	}
	if g.Equal(l.Grid) {
		rep.Unchanged = append(rep.Unchanged, l.PatternName)
		return
	}
	l.Grid = g
	rep.Updated = append(rep.Updated, l.PatternName)
}

func (r *Reconciler) refreshUnbacked(l *Lane, snap *runtime.Snapshot, rep *RefreshReport) {
	l.IsPlaying = false
	if !l.backed {
		// Voice lane that never had a runtime pattern: lives as long as its voice
		if _, ok := snap.Voices[l.VoiceName]; ok {
			return
		}
	}
	if l.LocallyModified && (l.backed || l.Grid.Hits() > 0) {
		rep.Retained = append(rep.Retained, l.PatternName)
		return
	}
	r.delete(l.PatternName)
	rep.Removed = append(rep.Removed, l.PatternName)
}

// ToggleStep flips a step between off and a full hit
func (r *Reconciler) ToggleStep(name string, index int) error {
	if index < 0 {
		return badStep(index)
	}
	return r.edit(name, func(g *grid.Grid) (*grid.Grid, error) {
		g.Toggle(index)
		return g, nil
	})
}

// SetStep writes a step, clamping velocity to 0-1
func (r *Reconciler) SetStep(name string, index int, step grid.Step) error {
	if index < 0 {
		return badStep(index)
	}
	step.Velocity = min(max(step.Velocity, 0), 1)
	return r.edit(name, func(g *grid.Grid) (*grid.Grid, error) {
		g.SetStep(index, step)
		return g, nil
	})
}

// SetVelocity changes a step's velocity, keeping its accent
func (r *Reconciler) SetVelocity(name string, index int, velocity float64) error {
	if index < 0 {
		return badStep(index)
	}
	velocity = min(max(velocity, 0), 1)
	return r.edit(name, func(g *grid.Grid) (*grid.Grid, error) {
		s := g.At(index)
		s.Velocity = velocity
		g.SetStep(index, s)
		return g, nil
	})
}

// SetAccent changes a step's accent. Accenting an off step makes it a full hit.
func (r *Reconciler) SetAccent(name string, index int, accent bool) error {
	if index < 0 {
		return badStep(index)
	}
	return r.edit(name, func(g *grid.Grid) (*grid.Grid, error) {
		s := g.At(index)
		s.Accent = accent
		if accent && !s.On() {
			s.Velocity = 1
		}
		g.SetStep(index, s)
		return g, nil
	})
}

// ApplyEuclidean fills every bar with a euclidean rhythm and returns the bar
func (r *Reconciler) ApplyEuclidean(name string, hits int) ([]grid.Step, error) {
	var bar []grid.Step
	err := r.edit(name, func(g *grid.Grid) (*grid.Grid, error) {
		bar = g.ApplyEuclidean(hits)
		return g, nil
	})
	return bar, err
}

// Clear turns every step of the lane off
func (r *Reconciler) Clear(name string) error {
	return r.edit(name, func(g *grid.Grid) (*grid.Grid, error) {
		g.Clear()
		return g, nil
	})
}

// Resize changes the lane's geometry, tiling existing content
func (r *Reconciler) Resize(name string, cfg grid.Config) error {
	if cfg.Total() == 0 || cfg.BeatsPerBar <= 0 {
		return apperr.Invalid(fmt.Errorf("%+v: %w", cfg, ErrBadGeometry), "grid geometry must be positive")
	}
	return r.edit(name, func(g *grid.Grid) (*grid.Grid, error) {
		return g.Resize(cfg), nil
	})
}

// Shift moves the selected steps by delta, wrapping around the lane
func (r *Reconciler) Shift(name string, selected []int, delta int) error {
	return r.edit(name, func(g *grid.Grid) (*grid.Grid, error) {
		g.ShiftSelection(selected, delta)
		return g, nil
	})
}

// edit applies fn to a lane's grid, marks the lane UI-authoritative and
// pushes the result to the runtime.
func (r *Reconciler) edit(name string, fn func(*grid.Grid) (*grid.Grid, error)) error {
	r.mu.Lock()
	l, ok := r.lanes[name]
	if !ok {
		r.mu.Unlock()
		return notFound(name)
	}
	g, err := fn(l.Grid.Clone())
	if err != nil {
		r.mu.Unlock()
		return err
	}
	l.Grid = g
	l.LocallyModified = true
	update := runtime.PatternUpdate{
		PatternString: converter.Encode(g),
		LoopBeats:     g.LoopBeats(),
	}
	r.mu.Unlock()

	r.push(name, update)
	r.notify(Change{Reason: "edit", Lane: name})
	return nil
}

// push queues update as the lane's next live update. Each lane has at most
// one request in flight; an update queued behind it replaces any older queued
// one, so the runtime always ends on the lane's latest grid. Failures are
// logged only.
func (r *Reconciler) push(name string, update runtime.PatternUpdate) {
	if r.pusher == nil {
		return
	}
	r.pushMu.Lock()
	slot, ok := r.pushes[name]
	if !ok {
		slot = &pushSlot{}
		r.pushes[name] = slot
	}
	slot.next = &update
	if slot.busy {
		r.pushMu.Unlock()
		return
	}
	slot.busy = true
	r.pushMu.Unlock()

	r.dispatch(func() { r.drain(name, slot) })
}

// drain sends queued updates for one lane until its slot is empty
func (r *Reconciler) drain(name string, slot *pushSlot) {
	for {
		r.pushMu.Lock()
		update := slot.next
		slot.next = nil
		if update == nil {
			slot.busy = false
			r.pushMu.Unlock()
			return
		}
		r.pushMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := r.pusher.UpdatePattern(ctx, name, *update)
		cancel()
		if err != nil {
			err = apperr.Tag(err, apperr.RuntimePush, "live update failed")
			r.log.Warn("runtime pattern update failed", "lane", name, "error", err)
		}
	}
}

// WriteBack encodes the lane's grid into its source definition and persists
// the file. On success the lane returns to source authority. Lanes without a
// source location fail with ErrNoSourceLocation; a definition missing from
// the search window fails with source.ErrSiteNotFound. Both leave the lane
// UI-authoritative.
func (r *Reconciler) WriteBack(name string) error {
	r.mu.Lock()
	err := r.writeBack(name)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.notify(Change{Reason: "writeback", Lane: name})
	return nil
}

// WriteBackAll writes back every pending anchored lane, returning failures by lane
func (r *Reconciler) WriteBackAll() map[string]error {
	failed := make(map[string]error)
	for _, name := range r.WritebackStatus().Pending {
		if err := r.WriteBack(name); err != nil {
			failed[name] = err
		}
	}
	return failed
}

func (r *Reconciler) writeBack(name string) error {
	l, ok := r.lanes[name]
	if !ok {
		return notFound(name)
	}
	if l.SourceLocation == nil {
		return apperr.Tag(fmt.Errorf("%q: %w", name, ErrNoSourceLocation), apperr.SyncFailed,
			fmt.Sprintf("%s has no definition in source to write to", name))
	}
	if r.source == nil {
		return apperr.Tag(errors.New("no source store configured"), apperr.SyncFailed, "source files are not available")
	}

	loc := *l.SourceLocation
	text, err := r.source.Read(loc.File)
	if err != nil {
		return apperr.Tag(err, apperr.SyncFailed, fmt.Sprintf("could not read %s", loc.File))
	}
	site, err := r.locator.Locate(text, loc, name)
	if err != nil {
		return apperr.Tag(err, apperr.SyncFailed,
			fmt.Sprintf("could not find the definition of %s near %s", name, loc))
	}
	if err := r.source.Write(loc.File, source.Replace(text, site, converter.Encode(l.Grid))); err != nil {
		return apperr.Tag(err, apperr.SyncFailed, fmt.Sprintf("could not save %s", loc.File))
	}

	l.LocallyModified = false
	l.SourceLocation = &source.Location{File: loc.File, Line: site.Line}
	r.log.Info("pattern written back", "lane", name, "location", l.SourceLocation.String())
	return nil
}

func (r *Reconciler) fromPattern(p runtime.Pattern) *Lane {
	g, err := converter.DecodeOrDefault(p.StepPattern, p.LoopBeats)
	if err != nil {
		r.log.Warn("malformed pattern, using empty grid", "pattern", p.Name, "error", err)
	}
	l := &Lane{
		PatternName: p.Name,
		VoiceName:   p.Voice,
		GroupPath:   p.Group,
		Grid:        g,
		IsPlaying:   p.Playing(),
		backed:      true,
	}
	if p.SourceLocation != nil {
		loc := *p.SourceLocation
		l.SourceLocation = &loc
	}
	return l
}

func (r *Reconciler) fromVoice(v runtime.Voice) *Lane {
	return &Lane{
		PatternName:     voiceLaneName(v.Name),
		VoiceName:       v.Name,
		GroupPath:       v.Group,
		Grid:            grid.NewEmpty(r.geometry),
		LocallyModified: true,
	}
}

func (r *Reconciler) insert(l *Lane) {
	l.Color = palette[r.colors%len(palette)]
	r.colors++
	r.lanes[l.PatternName] = l
	r.order = append(r.order, l.PatternName)
}

func (r *Reconciler) delete(name string) {
	delete(r.lanes, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Reconciler) notify(c Change) {
	if r.onChange != nil {
		r.onChange(c)
	}
}

func voiceLaneName(voice string) string {
	return voice + "_pattern"
}

func notFound(name string) error {
	return apperr.NotFound(fmt.Errorf("%q: %w", name, ErrLaneNotFound), fmt.Sprintf("lane %s not found", name))
}

func badStep(index int) error {
	return apperr.Invalid(fmt.Errorf("%d: %w", index, ErrBadStep), fmt.Sprintf("step %d is out of range", index))
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
