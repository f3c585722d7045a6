// Package runtime talks to the live performance engine over HTTP
package runtime

import "github.com/james-see/patternsync/pkg/source"

// Item status values reported by the runtime
const (
	StatusPlaying = "playing"
	StatusStopped = "stopped"
	StatusQueued  = "queued"
)

// Kind names a startable runtime object
type Kind string

const (
	KindPattern  Kind = "pattern"
	KindMelody   Kind = "melody"
	KindSequence Kind = "sequence"
)

// Snapshot is a full-state push from the runtime
type Snapshot struct {
	Groups          []Group             `json:"groups"`
	Patterns        map[string]Pattern  `json:"patterns"`
	Voices          map[string]Voice    `json:"voices"`
	Melodies        map[string]Melody   `json:"melodies"`
	Sequences       map[string]Sequence `json:"sequences"`
	ActiveSequences []string            `json:"active_sequences"`
	Effects         []Effect            `json:"effects"`
	Transport       Transport           `json:"transport"`
}

// Group is a mixer group. Path is slash-separated, e.g. "drums/kit".
type Group struct {
	Name   string             `json:"name"`
	Path   string             `json:"path"`
	Muted  bool               `json:"muted"`
	Soloed bool               `json:"soloed"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Pattern is a step pattern known to the runtime
type Pattern struct {
	Name           string           `json:"name"`
	Group          string           `json:"group"`
	Voice          string           `json:"voice,omitempty"`
	StepPattern    string           `json:"step_pattern"`
	LoopBeats      float64          `json:"loop_beats"`
	SourceLocation *source.Location `json:"source_location,omitempty"`
	IsLooping      bool             `json:"is_looping"`
	Status         string           `json:"status"`
}

// Playing reports whether the pattern is sounding
func (p Pattern) Playing() bool {
	return p.Status == StatusPlaying
}

// Voice is a sound source that patterns and melodies trigger
type Voice struct {
	Name  string `json:"name"`
	Group string `json:"group"`
	Type  string `json:"type,omitempty"`
}

// Melody is a pitched phrase
type Melody struct {
	Name           string           `json:"name"`
	Group          string           `json:"group"`
	Voice          string           `json:"voice,omitempty"`
	LoopBeats      float64          `json:"loop_beats"`
	SourceLocation *source.Location `json:"source_location,omitempty"`
	IsLooping      bool             `json:"is_looping"`
	Status         string           `json:"status"`
}

// Playing reports whether the melody is sounding
func (m Melody) Playing() bool {
	return m.Status == StatusPlaying
}

// Sequence arranges clips over a loop
type Sequence struct {
	Name           string           `json:"name"`
	Group          string           `json:"group"`
	LoopBeats      float64          `json:"loop_beats"`
	Clips          []SequenceClip   `json:"clips"`
	SourceLocation *source.Location `json:"source_location,omitempty"`
}

// SequenceClip places a pattern, melody, nested sequence or fade inside a sequence
type SequenceClip struct {
	Type      string  `json:"type"` // pattern | melody | sequence | fade
	Name      string  `json:"name"`
	StartBeat float64 `json:"start_beat"`
	EndBeat   float64 `json:"end_beat"`
}

// Effect is an insert on a group
type Effect struct {
	Name   string             `json:"name"`
	Group  string             `json:"group"`
	Type   string             `json:"type"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Transport is the authoritative clock state
type Transport struct {
	CurrentBeat   float64  `json:"current_beat"`
	BPM           float64  `json:"bpm"`
	Running       bool     `json:"running"`
	LoopBeats     *float64 `json:"loop_beats,omitempty"`
	TimeSignature [2]int   `json:"time_signature,omitempty"`
}

// PatternUpdate is the body of an update-without-save push
type PatternUpdate struct {
	PatternString string  `json:"pattern_string"`
	LoopBeats     float64 `json:"loop_beats"`
}

// FindGroup returns the group with path
func (s *Snapshot) FindGroup(path string) (Group, bool) {
	for _, g := range s.Groups {
		if g.Path == path {
			return g, true
		}
	}
	return Group{}, false
}

// PatternsInGroup returns patterns whose group is path
func (s *Snapshot) PatternsInGroup(path string) []Pattern {
	var out []Pattern
	for _, p := range s.Patterns {
		if p.Group == path {
			out = append(out, p)
		}
	}
	return out
}

// VoicesInGroup returns voices whose group is path
func (s *Snapshot) VoicesInGroup(path string) []Voice {
	var out []Voice
	for _, v := range s.Voices {
		if v.Group == path {
			out = append(out, v)
		}
	}
	return out
}

// SequenceActive reports whether name is in the active-sequence list
func (s *Snapshot) SequenceActive(name string) bool {
	for _, a := range s.ActiveSequences {
		if a == name {
			return true
		}
	}
	return false
}
