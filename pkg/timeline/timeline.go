// Package timeline flattens the runtime's group, sequence and clip hierarchy
// into tracks of time-ranged blocks for an arrangement view.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/source"
)

// MinLoopBeats is the narrowest timeline drawn
const MinLoopBeats = 4.0

// MaxDepth bounds nested sequence expansion
const MaxDepth = 32

var (
	ErrCycle   = errors.New("sequence references itself")
	ErrTooDeep = errors.New("sequence nesting too deep")
	ErrNoState = errors.New("no runtime state")
)

// ClipType is what a block plays
type ClipType string

const (
	ClipPattern  ClipType = "pattern"
	ClipMelody   ClipType = "melody"
	ClipSequence ClipType = "sequence"
	ClipGroup    ClipType = "group"
	ClipFade     ClipType = "fade"
)

var clipColors = map[ClipType]string{
	ClipPattern:  "#e94560",
	ClipMelody:   "#4ecca3",
	ClipSequence: "#f9a826",
	ClipGroup:    "#8d6cab",
	ClipFade:     "#6c757d",
}

// Mode records which path produced the tracks
type Mode string

const (
	ModeSequences Mode = "sequences" // expanded from active sequences
	ModePlaying   Mode = "playing"   // flat per-group tracks of playing items
	ModeSkeleton  Mode = "skeleton"  // defined but inactive sequences, no clips
	ModeEmpty     Mode = "empty"
)

// Clip is one block on a track. EndBeat is exclusive.
type Clip struct {
	Name           string           `json:"name"`
	Type           ClipType         `json:"type"`
	StartBeat      float64          `json:"startBeat"`
	EndBeat        float64          `json:"endBeat"`
	Color          string           `json:"color"`
	Active         bool             `json:"active"`
	Depth          int              `json:"depth,omitempty"`
	SourceLocation *source.Location `json:"sourceLocation,omitempty"`
}

// Track is one row of the timeline
type Track struct {
	Name     string `json:"name"`
	Group    string `json:"group"`
	Sequence string `json:"sequence,omitempty"`
	Clips    []Clip `json:"clips"`
	Error    string `json:"error,omitempty"`
}

// Timeline is the composed arrangement
type Timeline struct {
	MaxLoopBeats float64 `json:"maxLoopBeats"`
	Mode         Mode    `json:"mode"`
	Tracks       []Track `json:"tracks"`
}

// Compose builds the timeline for a snapshot. Cyclic or over-deep sequence
// references abort only the affected track; the returned error joins them
// and the timeline is still complete for every other track.
func Compose(snap *runtime.Snapshot) (Timeline, error) {
	if snap == nil {
		return Timeline{MaxLoopBeats: MinLoopBeats, Mode: ModeEmpty, Tracks: []Track{}},
			apperr.NotFound(ErrNoState, "no runtime state received yet")
	}

	c := &composer{snap: snap}
	tl := Timeline{MaxLoopBeats: MaxLoopBeats(snap), Mode: ModeSequences}

	var errs []error
	for _, seq := range c.activeSequences() {
		tr := Track{Name: seq.Name, Group: seq.Group, Sequence: seq.Name, Clips: []Clip{}}
		clips, err := c.expand(seq, 0, tl.MaxLoopBeats, 0, map[string]bool{})
		if err != nil {
			tr.Error = err.Error()
			errs = append(errs, err)
		}
		tr.Clips = append(tr.Clips, clips...)
		tl.Tracks = append(tl.Tracks, tr)
	}

	if !anyClips(tl.Tracks) {
		if playing := c.playingTracks(tl.MaxLoopBeats); len(playing) > 0 {
			tl.Mode = ModePlaying
			tl.Tracks = playing
		} else if skeleton := c.skeleton(); len(skeleton) > 0 {
			tl.Mode = ModeSkeleton
			tl.Tracks = skeleton
		} else if len(tl.Tracks) == 0 {
			tl.Mode = ModeEmpty
		}
	}
	if tl.Tracks == nil {
		tl.Tracks = []Track{}
	}

	if len(errs) > 0 {
		return tl, apperr.Tag(errors.Join(errs...), apperr.Cycle, "some sequences could not be expanded")
	}
	return tl, nil
}

// MaxLoopBeats is the timeline width: the longest active sequence or playing
// pattern or melody, and never less than MinLoopBeats.
func MaxLoopBeats(snap *runtime.Snapshot) float64 {
	width := MinLoopBeats
	for _, name := range snap.ActiveSequences {
		if s, ok := snap.Sequences[name]; ok {
			width = math.Max(width, s.LoopBeats)
		}
	}
	for _, p := range snap.Patterns {
		if p.Playing() {
			width = math.Max(width, p.LoopBeats)
		}
	}
	for _, m := range snap.Melodies {
		if m.Playing() {
			width = math.Max(width, m.LoopBeats)
		}
	}
	return width
}

type composer struct {
	snap *runtime.Snapshot
}

// expand tiles seq across [offset, end). visited holds the sequences on the
// current expansion path.
func (c *composer) expand(seq runtime.Sequence, offset, end float64, depth int, visited map[string]bool) ([]Clip, error) {
	if depth >= MaxDepth {
		return nil, fmt.Errorf("%s at depth %d: %w", seq.Name, depth, ErrTooDeep)
	}
	if visited[seq.Name] {
		return nil, fmt.Errorf("%s: %w", seq.Name, ErrCycle)
	}
	visited[seq.Name] = true
	defer delete(visited, seq.Name)

	loop := seqLoop(seq)
	if loop <= 0 {
		return nil, nil
	}

	var out []Clip
	for base := offset; base < end; base += loop {
		for _, sc := range seq.Clips {
			start := base + sc.StartBeat
			stop := math.Min(base+sc.EndBeat, end)
			if sc.EndBeat <= sc.StartBeat || start >= stop {
				continue
			}

			typ := ClipType(sc.Type)
			if typ != ClipSequence {
				out = append(out, c.leaf(sc.Name, typ, start, stop, depth)...)
				continue
			}

			sub, ok := c.snap.Sequences[sc.Name]
			if !ok {
				continue
			}
			inner, err := c.expand(sub, start, stop, depth+1, visited)
			out = append(out, inner...)
			if err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// leaf tiles a pattern or melody across [start, stop) by its own loop length
func (c *composer) leaf(name string, typ ClipType, start, stop float64, depth int) []Clip {
	loop, active, loc := c.lookup(name, typ)
	clip := Clip{
		Name:           name,
		Type:           typ,
		Color:          clipColors[typ],
		Active:         active,
		Depth:          depth,
		SourceLocation: loc,
	}
	if clip.Color == "" {
		clip.Color = clipColors[ClipPattern]
	}
	return tile(clip, start, stop, loop)
}

func (c *composer) lookup(name string, typ ClipType) (loop float64, active bool, loc *source.Location) {
	switch typ {
	case ClipPattern:
		if p, ok := c.snap.Patterns[name]; ok {
			return p.LoopBeats, p.Playing(), p.SourceLocation
		}
	case ClipMelody:
		if m, ok := c.snap.Melodies[name]; ok {
			return m.LoopBeats, m.Playing(), m.SourceLocation
		}
	}
	return 0, false, nil
}

// activeSequences returns active sequences ordered by group then name
func (c *composer) activeSequences() []runtime.Sequence {
	var seqs []runtime.Sequence
	for _, name := range c.snap.ActiveSequences {
		if s, ok := c.snap.Sequences[name]; ok {
			seqs = append(seqs, s)
		}
	}
	c.sortByGroup(seqs)
	return seqs
}

// playingTracks builds one track per group from directly playing items, each
// tiled to width on its own loop length.
func (c *composer) playingTracks(width float64) []Track {
	byGroup := make(map[string][]Clip)
	add := func(group string, clips []Clip) {
		byGroup[group] = append(byGroup[group], clips...)
	}

	for _, p := range sortedPatterns(c.snap.Patterns) {
		if p.Playing() {
			add(p.Group, tile(Clip{Name: p.Name, Type: ClipPattern, Color: clipColors[ClipPattern], Active: true, SourceLocation: p.SourceLocation}, 0, width, p.LoopBeats))
		}
	}
	for _, m := range sortedMelodies(c.snap.Melodies) {
		if m.Playing() {
			add(m.Group, tile(Clip{Name: m.Name, Type: ClipMelody, Color: clipColors[ClipMelody], Active: true, SourceLocation: m.SourceLocation}, 0, width, m.LoopBeats))
		}
	}

	var tracks []Track
	for _, g := range c.groupOrder(byGroup) {
		tracks = append(tracks, Track{Name: groupName(g), Group: g, Clips: byGroup[g]})
	}
	return tracks
}

// skeleton lists defined sequences per group with no clips
func (c *composer) skeleton() []Track {
	seqs := make([]runtime.Sequence, 0, len(c.snap.Sequences))
	for _, s := range c.snap.Sequences {
		seqs = append(seqs, s)
	}
	c.sortByGroup(seqs)

	var tracks []Track
	for _, s := range seqs {
		tracks = append(tracks, Track{Name: s.Name, Group: s.Group, Sequence: s.Name, Clips: []Clip{}})
	}
	return tracks
}

func (c *composer) groupIndex() map[string]int {
	idx := make(map[string]int, len(c.snap.Groups))
	for i, g := range c.snap.Groups {
		idx[g.Path] = i
	}
	return idx
}

func (c *composer) sortByGroup(seqs []runtime.Sequence) {
	idx := c.groupIndex()
	rank := func(g string) int {
		if i, ok := idx[g]; ok {
			return i
		}
		return len(idx)
	}
	sort.SliceStable(seqs, func(i, j int) bool {
		ri, rj := rank(seqs[i].Group), rank(seqs[j].Group)
		if ri != rj {
			return ri < rj
		}
		return seqs[i].Name < seqs[j].Name
	})
}

func (c *composer) groupOrder(byGroup map[string][]Clip) []string {
	var out []string
	seen := make(map[string]bool)
	for _, g := range c.snap.Groups {
		if _, ok := byGroup[g.Path]; ok && !seen[g.Path] {
			out = append(out, g.Path)
			seen[g.Path] = true
		}
	}
	var rest []string
	for g := range byGroup {
		if !seen[g] {
			rest = append(rest, g)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// tile repeats clip across [start, stop) every loop beats, truncating the
// last copy. A non-positive loop or one covering the window yields one block.
func tile(clip Clip, start, stop, loop float64) []Clip {
	if loop <= 0 || loop >= stop-start {
		clip.StartBeat, clip.EndBeat = start, stop
		return []Clip{clip}
	}
	n := int(math.Ceil((stop - start) / loop))
	out := make([]Clip, 0, n)
	for i := 0; i < n; i++ {
		b := clip
		b.StartBeat = start + float64(i)*loop
		b.EndBeat = math.Min(b.StartBeat+loop, stop)
		out = append(out, b)
	}
	return out
}

func seqLoop(seq runtime.Sequence) float64 {
	if seq.LoopBeats > 0 {
		return seq.LoopBeats
	}
	var end float64
	for _, c := range seq.Clips {
		end = math.Max(end, c.EndBeat)
	}
	return end
}

func anyClips(tracks []Track) bool {
	for _, t := range tracks {
		if len(t.Clips) > 0 {
			return true
		}
	}
	return false
}

func groupName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func sortedPatterns(m map[string]runtime.Pattern) []runtime.Pattern {
	out := make([]runtime.Pattern, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedMelodies(m map[string]runtime.Melody) []runtime.Melody {
	out := make([]runtime.Melody, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
