// Package converter maps between step grids and their textual and MIDI encodings
package converter

import (
	"errors"

	"github.com/james-see/patternsync/pkg/grid"
)

// Pattern text notation
const (
	BarSeparator = '|'
	RestChar     = '.'
	HitChar      = 'x'
	AccentChar   = 'X'

	// VelocityLevels is the number of quantized digit levels (1-9)
	VelocityLevels = 9

	// FullVelocity is the threshold at or above which a step encodes as a plain hit
	FullVelocity = 0.95
)

// Decode errors
var (
	ErrEmptyPattern = errors.New("pattern has no steps")
	ErrUnequalBars  = errors.New("pattern bars have unequal lengths")
	ErrUnknownChar  = errors.New("pattern has an unrecognized character")
)

// Options controls MIDI generation and import
type Options struct {
	Tempo   float64     // BPM written to exported files
	Note    uint8       // MIDI note used for hits
	Channel uint8       // 0-15
	Grid    grid.Config // geometry used when importing MIDI
}

// DefaultOptions returns options for a 120 BPM kick on channel 1
func DefaultOptions() Options {
	return Options{
		Tempo:   120.0,
		Note:    36,
		Channel: 0,
		Grid:    grid.DefaultConfig,
	}
}

// Converter handles file conversions between text patterns and MIDI
type Converter struct {
	opts Options
}

// New creates a new Converter with the given options
func New(opts Options) *Converter {
	if opts.Tempo <= 0 {
		opts.Tempo = 120.0
	}
	if opts.Grid.Total() == 0 {
		opts.Grid = grid.DefaultConfig
	}
	return &Converter{opts: opts}
}

// Options returns the current options
func (c *Converter) Options() Options {
	return c.opts
}
