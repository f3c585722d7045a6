package converter

import (
	"fmt"
	"math"
	"strings"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/grid"
)

// Decode parses pattern text into a grid with four beats per bar.
//
// Characters: '.', '-' and '_' rest, 'x' is a full hit, 'X' an accented hit
// and '1'-'9' a hit at digit/9 velocity. Bars are separated by '|' and must
// all have the length of the first bar. Whitespace is ignored.
func Decode(text string) (*grid.Grid, error) {
	return decode(text, 0)
}

// DecodeLoop parses pattern text and derives beats per bar from the loop
// length when it divides evenly across the bars.
func DecodeLoop(text string, loopBeats float64) (*grid.Grid, error) {
	return decode(text, loopBeats)
}

// DecodeOrDefault decodes text, falling back to an empty grid of the default
// geometry when the text is malformed. The decode error is still returned.
func DecodeOrDefault(text string, loopBeats float64) (*grid.Grid, error) {
	g, err := decode(text, loopBeats)
	if err != nil {
		return grid.NewEmpty(grid.DefaultConfig), err
	}
	return g, nil
}

func decode(text string, loopBeats float64) (*grid.Grid, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, text)
	compact = strings.Trim(compact, string(BarSeparator))
	if compact == "" {
		return nil, apperr.Tag(ErrEmptyPattern, apperr.Decode, "pattern is empty")
	}

	bars := strings.Split(compact, string(BarSeparator))
	stepsPerBar := len(bars[0])
	for i, bar := range bars {
		if len(bar) != stepsPerBar {
			return nil, apperr.Tag(
				fmt.Errorf("bar %d has %d steps, bar 1 has %d: %w", i+1, len(bar), stepsPerBar, ErrUnequalBars),
				apperr.Decode, "pattern bars must all be the same length")
		}
	}

	cfg := grid.Config{
		StepsPerBar: stepsPerBar,
		NumBars:     len(bars),
		BeatsPerBar: beatsPerBar(loopBeats, len(bars)),
	}
	g := grid.NewEmpty(cfg)
	for b, bar := range bars {
		for s := 0; s < len(bar); s++ {
			step, ok := decodeStep(bar[s])
			if !ok {
				return nil, apperr.Tag(
					fmt.Errorf("%q at bar %d step %d: %w", bar[s], b+1, s+1, ErrUnknownChar),
					apperr.Decode, fmt.Sprintf("unrecognized pattern character %q", bar[s]))
			}
			g.Steps[b*stepsPerBar+s] = step
		}
	}
	return g, nil
}

func beatsPerBar(loopBeats float64, numBars int) int {
	if loopBeats <= 0 || numBars <= 0 {
		return grid.DefaultConfig.BeatsPerBar
	}
	per := loopBeats / float64(numBars)
	if per < 1 || per != math.Trunc(per) {
		return grid.DefaultConfig.BeatsPerBar
	}
	return int(per)
}

func decodeStep(c byte) (grid.Step, bool) {
	switch {
	case c == RestChar || c == '-' || c == '_':
		return grid.Off, true
	case c == HitChar:
		return grid.Hit, true
	case c == AccentChar:
		return grid.Step{Velocity: 1, Accent: true}, true
	case c >= '1' && c <= '9':
		return grid.Step{Velocity: float64(c-'0') / VelocityLevels}, true
	}
	return grid.Off, false
}

// Encode renders a grid in pattern notation. Velocities between the digit
// levels are rounded, so encoding is lossy for unquantized grids.
func Encode(g *grid.Grid) string {
	var b strings.Builder
	b.Grow(g.Total() + g.NumBars)
	for bar := 0; bar < g.NumBars; bar++ {
		if bar > 0 {
			b.WriteByte(BarSeparator)
		}
		for s := 0; s < g.StepsPerBar; s++ {
			b.WriteByte(encodeStep(g.At(bar*g.StepsPerBar + s)))
		}
	}
	return b.String()
}

func encodeStep(s grid.Step) byte {
	switch {
	case s.Velocity <= 0:
		return RestChar
	case s.Accent:
		return AccentChar
	case s.Velocity >= FullVelocity:
		return HitChar
	}
	level := int(math.Round(s.Velocity * VelocityLevels))
	level = min(max(level, 1), VelocityLevels)
	return byte('0' + level)
}

// Valid reports whether text decodes without error
func Valid(text string) bool {
	_, err := Decode(text)
	return err == nil
}
