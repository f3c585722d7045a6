package grid

import (
	"testing"
)

func TestNewEmpty(t *testing.T) {
	g := NewEmpty(Config{StepsPerBar: 16, NumBars: 2, BeatsPerBar: 4})

	if len(g.Steps) != 32 {
		t.Fatalf("len(Steps) = %d, want %d", len(g.Steps), 32)
	}
	for i, s := range g.Steps {
		if s.On() {
			t.Errorf("step %d should be off", i)
		}
	}
	if g.LoopBeats() != 8 {
		t.Errorf("LoopBeats() = %v, want 8", g.LoopBeats())
	}
}

func TestSetStepPastEnd(t *testing.T) {
	g := NewEmpty(Config{StepsPerBar: 16, NumBars: 1, BeatsPerBar: 4})
	g.SetStep(20, Step{Velocity: 1})

	if len(g.Steps) != 21 {
		t.Fatalf("len(Steps) = %d, want 21", len(g.Steps))
	}
	for i := 16; i < 20; i++ {
		if g.Steps[i] != Off {
			t.Errorf("step %d = %+v, want off", i, g.Steps[i])
		}
	}
	if g.Steps[20] != (Step{Velocity: 1}) {
		t.Errorf("step 20 = %+v, want hit", g.Steps[20])
	}
}

func TestSetStepNegativeIgnored(t *testing.T) {
	g := NewEmpty(DefaultConfig)
	g.SetStep(-1, Hit)
	if g.Hits() != 0 {
		t.Errorf("Hits() = %d, want 0", g.Hits())
	}
}

func TestAtImplicitOff(t *testing.T) {
	g := &Grid{Config: DefaultConfig, Steps: []Step{Hit}}
	if !g.At(0).On() {
		t.Error("At(0) should be on")
	}
	if g.At(15).On() {
		t.Error("At(15) should read as off")
	}
	if g.At(99).On() {
		t.Error("At(99) should read as off")
	}
}

func TestToggle(t *testing.T) {
	g := NewEmpty(DefaultConfig)
	g.Toggle(3)
	if g.At(3) != Hit {
		t.Errorf("At(3) = %+v, want hit", g.At(3))
	}
	g.Toggle(3)
	if g.At(3).On() {
		t.Error("At(3) should be off after second toggle")
	}
}

func TestResizeTiles(t *testing.T) {
	g := NewEmpty(Config{StepsPerBar: 4, NumBars: 1, BeatsPerBar: 4})
	g.SetStep(0, Hit)
	g.SetStep(2, Step{Velocity: 0.5})

	longer := g.Resize(Config{StepsPerBar: 4, NumBars: 3, BeatsPerBar: 4})
	if len(longer.Steps) != 12 {
		t.Fatalf("len(Steps) = %d, want 12", len(longer.Steps))
	}
	for i := range longer.Steps {
		if longer.Steps[i] != g.At(i%4) {
			t.Errorf("step %d = %+v, want %+v", i, longer.Steps[i], g.At(i%4))
		}
	}

	shorter := g.Resize(Config{StepsPerBar: 2, NumBars: 1, BeatsPerBar: 2})
	if len(shorter.Steps) != 2 || shorter.Steps[0] != Hit || shorter.Steps[1].On() {
		t.Errorf("shorter = %+v, want [hit off]", shorter.Steps)
	}
}

func TestResizeRoundTrip(t *testing.T) {
	// Growing then shrinking back restores the original, because the first
	// oldTotal steps of the tiled grid are the original steps.
	orig := Config{StepsPerBar: 8, NumBars: 1, BeatsPerBar: 4}
	g := NewEmpty(orig)
	g.SetStep(1, Hit)
	g.SetStep(5, Step{Velocity: 1, Accent: true})

	back := g.Resize(Config{StepsPerBar: 8, NumBars: 3, BeatsPerBar: 4}).Resize(orig)
	if !back.Equal(g) {
		t.Errorf("grow/shrink = %+v, want %+v", back.Steps, g.Steps)
	}

	// Shrinking first loses steps 4..7; growing back tiles the first four.
	lossy := g.Resize(Config{StepsPerBar: 4, NumBars: 1, BeatsPerBar: 2}).Resize(orig)
	for i := 0; i < 8; i++ {
		if lossy.At(i) != g.At(i%4) {
			t.Errorf("step %d = %+v, want %+v", i, lossy.At(i), g.At(i%4))
		}
	}
}

func TestResizeFromEmptyGeometry(t *testing.T) {
	g := &Grid{}
	out := g.Resize(DefaultConfig)
	if len(out.Steps) != 16 || out.Hits() != 0 {
		t.Errorf("Resize from empty = %+v, want 16 off steps", out.Steps)
	}
}

func TestShiftSelection(t *testing.T) {
	g := NewEmpty(Config{StepsPerBar: 8, NumBars: 1, BeatsPerBar: 4})
	g.SetStep(0, Hit)
	g.SetStep(7, Step{Velocity: 0.5})
	g.SetStep(3, Step{Velocity: 1, Accent: true})

	g.ShiftSelection([]int{0, 7}, 1)

	if g.At(0) != (Step{Velocity: 0.5}) {
		t.Errorf("At(0) = %+v, want wrapped velocity 0.5", g.At(0))
	}
	if g.At(1) != Hit {
		t.Errorf("At(1) = %+v, want hit", g.At(1))
	}
	if g.At(7).On() {
		t.Error("At(7) should be vacated")
	}
	if g.At(3) != (Step{Velocity: 1, Accent: true}) {
		t.Error("unselected step 3 should be untouched")
	}
}

func TestShiftSelectionCollisionLastWins(t *testing.T) {
	g := NewEmpty(Config{StepsPerBar: 4, NumBars: 1, BeatsPerBar: 4})
	g.SetStep(0, Step{Velocity: 0.25})
	g.SetStep(1, Step{Velocity: 0.75})

	// With a single delta only duplicate selection entries can land on the
	// same target.
	g.ShiftSelection([]int{0, 1, 1}, 1)

	if g.At(1) != (Step{Velocity: 0.25}) {
		t.Errorf("At(1) = %+v, want 0.25", g.At(1))
	}
	if g.At(2) != (Step{Velocity: 0.75}) {
		t.Errorf("At(2) = %+v, want 0.75", g.At(2))
	}
	if g.At(0).On() {
		t.Error("At(0) should be vacated")
	}
}

func TestShiftSelectionNegativeDelta(t *testing.T) {
	g := NewEmpty(Config{StepsPerBar: 4, NumBars: 1, BeatsPerBar: 4})
	g.SetStep(0, Hit)
	g.ShiftSelection([]int{0}, -1)
	if g.At(3) != Hit || g.At(0).On() {
		t.Errorf("Steps = %+v, want hit wrapped to 3", g.Steps)
	}
}

func TestEqualIgnoresLazyLength(t *testing.T) {
	a := &Grid{Config: DefaultConfig, Steps: []Step{Hit}}
	b := NewEmpty(DefaultConfig)
	b.SetStep(0, Hit)
	if !a.Equal(b) {
		t.Error("grids with same content should be equal regardless of stored length")
	}
	b.SetStep(20, Hit)
	if a.Equal(b) {
		t.Error("step past the end differs")
	}
}

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name     string
		hits     int
		steps    int
		expected string
	}{
		{"3 of 8", 3, 8, "10010010"},
		{"4 of 16", 4, 16, "1000100010001000"},
		{"5 of 8", 5, 8, "10101101"},
		{"zero hits", 0, 8, "00000000"},
		{"all hits", 8, 8, "11111111"},
		{"more hits than steps", 12, 8, "11111111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(Euclidean(tt.hits, tt.steps))
			if got != tt.expected {
				t.Errorf("Euclidean(%d, %d) = %s, want %s", tt.hits, tt.steps, got, tt.expected)
			}
		})
	}
}

func TestEuclideanFullVelocityNoAccent(t *testing.T) {
	for _, s := range Euclidean(8, 8) {
		if s != Hit {
			t.Fatalf("step = %+v, want %+v", s, Hit)
		}
	}
}

func TestApplyEuclideanRepeatsPerBar(t *testing.T) {
	g := NewEmpty(Config{StepsPerBar: 8, NumBars: 3, BeatsPerBar: 4})
	bar := g.ApplyEuclidean(3)

	if render(bar) != "10010010" {
		t.Fatalf("bar = %s, want 10010010", render(bar))
	}
	for b, row := range g.Bars() {
		if render(row) != "10010010" {
			t.Errorf("bar %d = %s, want 10010010", b, render(row))
		}
	}
	if g.Hits() != 9 {
		t.Errorf("Hits() = %d, want 9", g.Hits())
	}
}

func render(steps []Step) string {
	out := make([]byte, len(steps))
	for i, s := range steps {
		if s.On() {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}
	return string(out)
}
