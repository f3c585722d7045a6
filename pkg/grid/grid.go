// Package grid provides the step-sequence model edited by pattern lanes
package grid

// Step represents a single step in a grid. A zero velocity is off regardless of accent.
type Step struct {
	Velocity float64 `json:"velocity"` // 0-1
	Accent   bool    `json:"accent"`
}

// Off is the implicit value of every step not yet written
var Off = Step{}

// Hit is a full-velocity unaccented step
var Hit = Step{Velocity: 1}

// On reports whether the step sounds
func (s Step) On() bool {
	return s.Velocity > 0
}

// Config holds grid geometry
type Config struct {
	StepsPerBar int `json:"stepsPerBar"`
	NumBars     int `json:"numBars"`
	BeatsPerBar int `json:"beatsPerBar"`
}

// DefaultConfig is the geometry used for new lanes and undecodable patterns
var DefaultConfig = Config{StepsPerBar: 16, NumBars: 1, BeatsPerBar: 4}

// Total returns the number of steps the geometry describes
func (c Config) Total() int {
	if c.StepsPerBar <= 0 || c.NumBars <= 0 {
		return 0
	}
	return c.StepsPerBar * c.NumBars
}

// LoopBeats returns the loop length in beats
func (c Config) LoopBeats() float64 {
	return float64(c.NumBars * c.BeatsPerBar)
}

// Grid is the step/velocity/accent matrix for one pattern.
// Steps may be shorter than Total(); missing indices read as Off.
type Grid struct {
	Config
	Steps []Step `json:"steps"`
}

// NewEmpty creates a grid with every step off
func NewEmpty(cfg Config) *Grid {
	return &Grid{
		Config: cfg,
		Steps:  make([]Step, cfg.Total()),
	}
}

// At returns the step at index, Off when index is past the stored steps
func (g *Grid) At(index int) Step {
	if index < 0 || index >= len(g.Steps) {
		return Off
	}
	return g.Steps[index]
}

// SetStep overwrites the step at index, growing Steps with off steps when needed.
// Negative indices are ignored.
func (g *Grid) SetStep(index int, step Step) {
	if index < 0 {
		return
	}
	if index >= len(g.Steps) {
		g.Steps = append(g.Steps, make([]Step, index-len(g.Steps)+1)...)
	}
	g.Steps[index] = step
}

// Toggle flips a step between off and a full-velocity hit
func (g *Grid) Toggle(index int) {
	if g.At(index).On() {
		g.SetStep(index, Off)
		return
	}
	g.SetStep(index, Hit)
}

// Clear turns every step off
func (g *Grid) Clear() {
	g.Steps = make([]Step, g.Total())
}

// Resize returns a new grid with cfg geometry. Step i of the result is
// step i % old total of g, so shorter content is tiled and longer content truncated.
func (g *Grid) Resize(cfg Config) *Grid {
	out := NewEmpty(cfg)
	oldTotal := g.Total()
	if oldTotal == 0 {
		return out
	}
	for i := range out.Steps {
		out.Steps[i] = g.At(i % oldTotal)
	}
	return out
}

// ShiftSelection moves the selected steps by delta positions, wrapping modulo
// the total step count. Vacated positions become off. When two selected steps
// land on the same index the one processed last wins.
func (g *Grid) ShiftSelection(selected []int, delta int) {
	total := g.Total()
	if total == 0 || len(selected) == 0 {
		return
	}

	moved := make([]Step, len(selected))
	for i, idx := range selected {
		moved[i] = g.At(wrap(idx, total))
	}
	for _, idx := range selected {
		g.SetStep(wrap(idx, total), Off)
	}
	for i, idx := range selected {
		g.SetStep(wrap(idx+delta, total), moved[i])
	}
}

// Clone returns a deep copy
func (g *Grid) Clone() *Grid {
	out := &Grid{Config: g.Config, Steps: make([]Step, len(g.Steps))}
	copy(out.Steps, g.Steps)
	return out
}

// Equal reports whether two grids have the same geometry and step content.
// Stored length differences past the last hit are ignored.
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.Config != o.Config {
		return false
	}
	n := max(len(g.Steps), len(o.Steps), g.Total())
	for i := 0; i < n; i++ {
		if g.At(i) != o.At(i) {
			return false
		}
	}
	return true
}

// Bars splits the grid into StepsPerBar-sized rows
func (g *Grid) Bars() [][]Step {
	bars := make([][]Step, g.NumBars)
	for b := range bars {
		bars[b] = make([]Step, g.StepsPerBar)
		for s := range bars[b] {
			bars[b][s] = g.At(b*g.StepsPerBar + s)
		}
	}
	return bars
}

// Hits returns the number of steps that sound
func (g *Grid) Hits() int {
	n := 0
	for i := 0; i < g.Total(); i++ {
		if g.At(i).On() {
			n++
		}
	}
	return n
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
