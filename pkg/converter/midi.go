package converter

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/patternsync/pkg/grid"
)

// MIDI velocities for exported hits
const (
	plainVelocity  = 100
	accentVelocity = 127
)

// MIDIConverter handles MIDI file parsing and generation for one lane
type MIDIConverter struct {
	ticksPerQuarter uint16
	opts            Options
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter(opts Options) *MIDIConverter {
	if opts.Tempo <= 0 {
		opts.Tempo = 120.0
	}
	if opts.Grid.Total() == 0 {
		opts.Grid = grid.DefaultConfig
	}
	return &MIDIConverter{
		ticksPerQuarter: 480,
		opts:            opts,
	}
}

// Tempo returns the tempo last read from a file, or the configured tempo
func (m *MIDIConverter) Tempo() float64 {
	return m.opts.Tempo
}

func ticksPerStep(tpq uint16, cfg grid.Config) uint32 {
	if cfg.StepsPerBar <= 0 {
		return uint32(tpq) / 4
	}
	t := uint32(tpq) * uint32(max(cfg.BeatsPerBar, 1)) / uint32(cfg.StepsPerBar)
	return max(t, 1)
}

// ParseMIDI quantizes note-on events onto a grid with the configured geometry.
// Hits past the end of the grid wrap around.
func (m *MIDIConverter) ParseMIDI(data []byte) (*grid.Grid, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		m.ticksPerQuarter = mt.Resolution()
	}

	g := grid.NewEmpty(m.opts.Grid)
	total := int64(g.Total())
	perStep := int64(ticksPerStep(m.ticksPerQuarter, m.opts.Grid))

	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message

			// Tempo meta message (FF 51 03 tt tt tt)
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				usPerBeat := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if usPerBeat > 0 {
					m.opts.Tempo = 60000000.0 / float64(usPerBeat)
				}
				continue
			}

			if len(msg) < 3 || msg[0] < 0x90 || msg[0] > 0x9F || msg[2] == 0 {
				continue
			}

			// Nearest step, not floor, so slightly early hits land on their beat
			idx := (tick + perStep/2) / perStep % total
			g.SetStep(int(idx), velocityStep(msg[2]))
		}
	}

	return g, nil
}

func velocityStep(v uint8) grid.Step {
	if v > plainVelocity {
		return grid.Step{Velocity: 1, Accent: true}
	}
	return grid.Step{Velocity: float64(v) / plainVelocity}
}

func stepVelocity(s grid.Step) uint8 {
	if s.Accent {
		return accentVelocity
	}
	v := uint8(math.Round(s.Velocity * plainVelocity))
	return max(v, 1)
}

// GenerateMIDI creates a one-track Standard MIDI File from a grid, padded to the loop length
func (m *MIDIConverter) GenerateMIDI(g *grid.Grid) ([]byte, error) {
	if g == nil {
		return nil, errors.New("nil grid")
	}
	if g.Total() == 0 {
		return nil, errors.New("grid has no steps")
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	var track smf.Track

	microsecondsPerBeat := uint32(60000000.0 / m.opts.Tempo)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}))

	// Time signature beatsPerBar/4
	track.Add(0, smf.Message([]byte{0xFF, 0x58, 0x04, byte(max(g.BeatsPerBar, 1)), 0x02, 0x18, 0x08}))

	perStep := ticksPerStep(m.ticksPerQuarter, g.Config)
	noteLength := max(perStep*3/4, 1)
	totalTicks := uint32(g.Total()) * perStep

	var current uint32
	for i := 0; i < g.Total(); i++ {
		step := g.At(i)
		if !step.On() {
			continue
		}
		at := uint32(i) * perStep
		track.Add(at-current, midi.NoteOn(m.opts.Channel, m.opts.Note, stepVelocity(step)))
		track.Add(noteLength, midi.NoteOff(m.opts.Channel, m.opts.Note))
		current = at + noteLength
	}

	if current < totalTicks {
		// Marker as padding so the file spans the full loop
		track.Add(totalTicks-current, smf.Message([]byte{0xFF, 0x06, 0x00}))
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}
