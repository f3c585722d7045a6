// Package lane reconciles editable pattern lanes against source text and the live runtime.
//
// Each lane is either source-authoritative, in which case incoming runtime
// snapshots and edited buffers re-derive its grid, or UI-authoritative after a
// local edit, in which case nothing external touches its grid until the lane
// is written back to source.
package lane

import (
	"github.com/james-see/patternsync/pkg/converter"
	"github.com/james-see/patternsync/pkg/grid"
	"github.com/james-see/patternsync/pkg/source"
)

// Authority says which side owns a lane's grid
type Authority int

const (
	SourceAuthoritative Authority = iota
	UIAuthoritative
)

func (a Authority) String() string {
	if a == UIAuthoritative {
		return "ui"
	}
	return "source"
}

// MarshalText implements encoding.TextMarshaler
func (a Authority) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Lane is one editable row bound to a named pattern
type Lane struct {
	PatternName     string           `json:"patternName"`
	VoiceName       string           `json:"voiceName,omitempty"`
	GroupPath       string           `json:"groupPath"`
	Grid            *grid.Grid       `json:"grid"`
	SourceLocation  *source.Location `json:"sourceLocation,omitempty"`
	IsPlaying       bool             `json:"isPlaying"`
	LocallyModified bool             `json:"locallyModified"`
	Color           string           `json:"color"`

	// backed is set once the runtime has reported a pattern for this lane
	backed bool
}

// Authority returns the lane's current owner
func (l Lane) Authority() Authority {
	if l.LocallyModified {
		return UIAuthoritative
	}
	return SourceAuthoritative
}

// Anchored reports whether the lane knows where its definition lives
func (l Lane) Anchored() bool {
	return l.SourceLocation != nil
}

// Pattern returns the lane's grid in pattern notation
func (l Lane) Pattern() string {
	return converter.Encode(l.Grid)
}

func (l *Lane) clone() Lane {
	out := *l
	out.Grid = l.Grid.Clone()
	if l.SourceLocation != nil {
		loc := *l.SourceLocation
		out.SourceLocation = &loc
	}
	return out
}

// Lane colours, assigned in creation order
var palette = []string{
	"#EA4974", "#940E7E", "#FD9D6E", "#470D79",
	"#39FF14", "#FFFF00", "#6F0A7E", "#8C1AF2",
}
