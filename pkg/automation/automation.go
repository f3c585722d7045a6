// Package automation holds parameter automation lanes: beat-ordered
// breakpoints interpolated between a lane's minimum and maximum value.
package automation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/james-see/patternsync/pkg/apperr"
)

// Curve shapes the segment that starts at a point
type Curve string

const (
	CurveLinear      Curve = "linear"
	CurveStep        Curve = "step"
	CurveExponential Curve = "exponential"
)

// expPower is the exponent of the exponential segment shape
const expPower = 2.0

var (
	ErrLaneNotFound  = errors.New("automation lane not found")
	ErrPointNotFound = errors.New("automation point not found")
	ErrBadRange      = errors.New("minimum must be below maximum")
	ErrBadBeat       = errors.New("beat must not be negative")
	ErrBadCurve      = errors.New("unknown curve type")
)

// Target is the parameter a lane drives
type Target struct {
	Type  string `json:"type"` // group, voice or effect
	Name  string `json:"name"`
	Param string `json:"param"`
}

// Point is a breakpoint. Value is normalized to 0-1.
type Point struct {
	ID    string  `json:"id"`
	Beat  float64 `json:"beat"`
	Value float64 `json:"value"`
	Curve Curve   `json:"curveType"`
}

// Lane is one automated parameter
type Lane struct {
	ID       string  `json:"id"`
	Target   Target  `json:"target"`
	MinValue float64 `json:"minValue"`
	MaxValue float64 `json:"maxValue"`
	Color    string  `json:"color"`
	Visible  bool    `json:"visible"`
	Points   []Point `json:"points"`
}

// ValueAt returns the parameter value at beat in lane units. Before the
// first point and after the last the nearest point holds.
func (l *Lane) ValueAt(beat float64) float64 {
	return l.MinValue + l.normalizedAt(beat)*(l.MaxValue-l.MinValue)
}

func (l *Lane) normalizedAt(beat float64) float64 {
	n := len(l.Points)
	if n == 0 {
		return 0
	}
	// first point strictly after beat
	i := sort.Search(n, func(i int) bool { return l.Points[i].Beat > beat })
	if i == 0 {
		return l.Points[0].Value
	}
	if i == n {
		return l.Points[n-1].Value
	}

	a, b := l.Points[i-1], l.Points[i]
	t := (beat - a.Beat) / (b.Beat - a.Beat)
	switch a.Curve {
	case CurveStep:
		return a.Value
	case CurveExponential:
		t = math.Pow(t, expPower)
	}
	return a.Value + (b.Value-a.Value)*t
}

// insert places p after any points at the same beat
func (l *Lane) insert(p Point) {
	i := sort.Search(len(l.Points), func(i int) bool { return l.Points[i].Beat > p.Beat })
	l.Points = append(l.Points, Point{})
	copy(l.Points[i+1:], l.Points[i:])
	l.Points[i] = p
}

func (l *Lane) index(id string) int {
	for i, p := range l.Points {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (l *Lane) clone() Lane {
	out := *l
	out.Points = append([]Point(nil), l.Points...)
	return out
}

// Set is the collection of automation lanes for a session
type Set struct {
	mu    sync.Mutex
	lanes map[string]*Lane
	order []string
}

// NewSet creates an empty Set
func NewSet() *Set {
	return &Set{lanes: make(map[string]*Lane)}
}

// Create adds a visible lane for target
func (s *Set) Create(target Target, minValue, maxValue float64, color string) (Lane, error) {
	if minValue >= maxValue {
		return Lane{}, apperr.Invalid(fmt.Errorf("%v >= %v: %w", minValue, maxValue, ErrBadRange), "automation minimum must be below maximum")
	}
	l := &Lane{
		ID:       uuid.NewString(),
		Target:   target,
		MinValue: minValue,
		MaxValue: maxValue,
		Color:    color,
		Visible:  true,
		Points:   []Point{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lanes[l.ID] = l
	s.order = append(s.order, l.ID)
	return l.clone(), nil
}

// Lanes returns copies of all lanes in creation order
func (s *Set) Lanes() []Lane {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Lane, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.lanes[id].clone())
	}
	return out
}

// Lane returns a copy of one lane
func (s *Set) Lane(id string) (Lane, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.get(id)
	if err != nil {
		return Lane{}, err
	}
	return l.clone(), nil
}

// Delete removes a lane
func (s *Set) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(id); err != nil {
		return err
	}
	delete(s.lanes, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetVisible shows or hides a lane
func (s *Set) SetVisible(id string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.get(id)
	if err != nil {
		return err
	}
	l.Visible = visible
	return nil
}

// AddPoint inserts a breakpoint, keeping points ordered by beat. Value is
// clamped to 0-1 and an empty curve means linear.
func (s *Set) AddPoint(laneID string, beat, value float64, curve Curve) (Point, error) {
	if err := checkPoint(beat, curve); err != nil {
		return Point{}, err
	}
	if curve == "" {
		curve = CurveLinear
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.get(laneID)
	if err != nil {
		return Point{}, err
	}
	p := Point{ID: uuid.NewString(), Beat: beat, Value: clamp01(value), Curve: curve}
	l.insert(p)
	return p, nil
}

// MovePoint changes a point's beat and value and re-sorts it
func (s *Set) MovePoint(laneID, pointID string, beat, value float64) (Point, error) {
	if err := checkPoint(beat, CurveLinear); err != nil {
		return Point{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.get(laneID)
	if err != nil {
		return Point{}, err
	}
	i := l.index(pointID)
	if i < 0 {
		return Point{}, pointNotFound(pointID)
	}
	p := l.Points[i]
	l.Points = append(l.Points[:i], l.Points[i+1:]...)
	p.Beat = beat
	p.Value = clamp01(value)
	l.insert(p)
	return p, nil
}

// RemovePoint deletes a breakpoint
func (s *Set) RemovePoint(laneID, pointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.get(laneID)
	if err != nil {
		return err
	}
	i := l.index(pointID)
	if i < 0 {
		return pointNotFound(pointID)
	}
	l.Points = append(l.Points[:i], l.Points[i+1:]...)
	return nil
}

// ValueAt evaluates a lane at beat
func (s *Set) ValueAt(laneID string, beat float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.get(laneID)
	if err != nil {
		return 0, err
	}
	return l.ValueAt(beat), nil
}

func (s *Set) get(id string) (*Lane, error) {
	l, ok := s.lanes[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Errorf("%q: %w", id, ErrLaneNotFound), fmt.Sprintf("automation lane %s not found", id))
	}
	return l, nil
}

func pointNotFound(id string) error {
	return apperr.NotFound(fmt.Errorf("%q: %w", id, ErrPointNotFound), fmt.Sprintf("automation point %s not found", id))
}

func checkPoint(beat float64, curve Curve) error {
	if beat < 0 || math.IsNaN(beat) {
		return apperr.Invalid(fmt.Errorf("%v: %w", beat, ErrBadBeat), "automation beat must not be negative")
	}
	switch curve {
	case "", CurveLinear, CurveStep, CurveExponential:
		return nil
	}
	return apperr.Invalid(fmt.Errorf("%q: %w", curve, ErrBadCurve), fmt.Sprintf("unknown curve type %s", curve))
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
