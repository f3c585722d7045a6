// Package transport extrapolates a smooth playhead from sparse transport ticks
package transport

import (
	"math"
	"sync"
	"time"

	"github.com/james-see/patternsync/pkg/runtime"
)

// Drift thresholds in beats between the authoritative and extrapolated position
const (
	JitterBeats = 0.05 // at or below: accepted as network jitter
	JumpBeats   = 0.5  // above: treated as a seek
)

// SoftBlend is the share of a moderate drift folded into the anchor per tick
const SoftBlend = 0.3

// Correction is what an authoritative tick did to the anchor
type Correction string

const (
	CorrectionNone    Correction = "none"
	CorrectionSoft    Correction = "soft"
	CorrectionHard    Correction = "hard"
	CorrectionStart   Correction = "start"
	CorrectionStop    Correction = "stop"
	CorrectionTempo   Correction = "tempo"
	CorrectionStopped Correction = "stopped"
)

// Clock returns the current time
type Clock func() time.Time

// State is the interpolated transport at an instant
type State struct {
	Beat          float64  `json:"beat"`
	LoopPosition  float64  `json:"loopPosition"`
	Bar           int      `json:"bar"`
	BPM           float64  `json:"bpm"`
	Running       bool     `json:"running"`
	LoopBeats     *float64 `json:"loopBeats,omitempty"`
	TimeSignature [2]int   `json:"timeSignature"`
	LastDrift     float64  `json:"lastDrift"`
}

// Interpolator holds the anchor sampled from authoritative ticks
type Interpolator struct {
	mu  sync.Mutex
	now Clock

	anchorTime time.Time
	anchorBeat float64
	bpm        float64
	running    bool
	loopBeats  *float64
	timeSig    [2]int
	lastDrift  float64
	seen       bool
}

// New creates an Interpolator. A nil clock uses time.Now.
func New(clock Clock) *Interpolator {
	if clock == nil {
		clock = time.Now
	}
	return &Interpolator{now: clock, timeSig: [2]int{4, 4}}
}

// Update folds in an authoritative tick and reports the correction applied
func (i *Interpolator) Update(t runtime.Transport) Correction {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	computed := i.beatAt(now)
	wasRunning := i.running
	tempoChanged := i.seen && t.BPM != i.bpm

	i.loopBeats = t.LoopBeats
	if t.TimeSignature[0] > 0 && t.TimeSignature[1] > 0 {
		i.timeSig = t.TimeSignature
	}
	i.bpm = t.BPM
	i.running = t.Running
	i.seen = true

	switch {
	case !t.Running:
		i.anchor(now, t.CurrentBeat)
		i.lastDrift = 0
		if wasRunning {
			return CorrectionStop
		}
		return CorrectionStopped
	case !wasRunning:
		i.anchor(now, t.CurrentBeat)
		i.lastDrift = 0
		return CorrectionStart
	case tempoChanged:
		i.anchor(now, t.CurrentBeat)
		i.lastDrift = 0
		return CorrectionTempo
	}

	drift := t.CurrentBeat - computed
	i.lastDrift = math.Abs(drift)
	switch {
	case i.lastDrift > JumpBeats:
		i.anchor(now, t.CurrentBeat)
		return CorrectionHard
	case i.lastDrift > JitterBeats:
		i.anchor(now, computed+drift*SoftBlend)
		return CorrectionSoft
	}
	return CorrectionNone
}

// Beat returns the extrapolated beat now
func (i *Interpolator) Beat() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.beatAt(i.now())
}

// LoopPosition returns the beat within the transport loop, or the plain
// beat when no loop length is set.
func (i *Interpolator) LoopPosition() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loopPosition(i.beatAt(i.now()))
}

// State returns a full reading of the transport now
func (i *Interpolator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()

	beat := i.beatAt(i.now())
	st := State{
		Beat:          beat,
		LoopPosition:  i.loopPosition(beat),
		BPM:           i.bpm,
		Running:       i.running,
		TimeSignature: i.timeSig,
		LastDrift:     i.lastDrift,
	}
	if i.loopBeats != nil {
		lb := *i.loopBeats
		st.LoopBeats = &lb
	}
	if i.timeSig[0] > 0 {
		st.Bar = int(math.Floor(beat/float64(i.timeSig[0]))) + 1
	}
	return st
}

func (i *Interpolator) anchor(now time.Time, beat float64) {
	i.anchorTime = now
	i.anchorBeat = beat
}

func (i *Interpolator) beatAt(now time.Time) float64 {
	if !i.running || i.bpm <= 0 {
		return i.anchorBeat
	}
	elapsed := float64(now.Sub(i.anchorTime)) / float64(time.Millisecond)
	return i.anchorBeat + elapsed/60000*i.bpm
}

func (i *Interpolator) loopPosition(beat float64) float64 {
	if i.loopBeats == nil || *i.loopBeats <= 0 {
		return beat
	}
	pos := math.Mod(beat, *i.loopBeats)
	if pos < 0 {
		pos += *i.loopBeats
	}
	return pos
}
