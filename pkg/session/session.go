// Package session wires the reconciler, timeline, transport and automation
// state for one running editor and fans changes out to subscribers.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/automation"
	"github.com/james-see/patternsync/pkg/grid"
	"github.com/james-see/patternsync/pkg/lane"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/source"
	"github.com/james-see/patternsync/pkg/timeline"
	"github.com/james-see/patternsync/pkg/transport"
)

// subscriberBuffer is how many events a slow subscriber may lag before drops
const subscriberBuffer = 64

var ErrNoRuntime = errors.New("no runtime configured")

// Runtime is the live engine the session controls
type Runtime interface {
	lane.Pusher
	Start(ctx context.Context, kind runtime.Kind, name string) error
	Stop(ctx context.Context, kind runtime.Kind, name string) error
	SetGroupParam(ctx context.Context, path, param string, value float64) error
	MuteGroup(ctx context.Context, path string) error
	UnmuteGroup(ctx context.Context, path string) error
	SoloGroup(ctx context.Context, path string) error
	UnsoloGroup(ctx context.Context, path string) error
	Seek(ctx context.Context, beat float64) error
	TriggerVoice(ctx context.Context, name string) error
	NoteOn(ctx context.Context, voice string, note int, velocity float64) error
	NoteOff(ctx context.Context, voice string, note int) error
}

// Event types published to subscribers
const (
	EventLanes      = "lanes"
	EventTimeline   = "timeline"
	EventTransport  = "transport"
	EventAutomation = "automation"
)

// Event is one update for views
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Options configures a Session
type Options struct {
	Runtime  Runtime
	Source   *source.Buffers
	Locator  *source.Locator
	Debounce time.Duration
	Clock    transport.Clock
	Logger   *slog.Logger
	Geometry grid.Config

	// Dispatch is handed to the reconciler for fire-and-forget pushes
	Dispatch func(func())
}

// Session is the registry of live state shared by every view
type Session struct {
	Lanes      *lane.Reconciler
	Transport  *transport.Interpolator
	Automation *automation.Set

	rt  Runtime
	log *slog.Logger

	mu          sync.Mutex
	timeline    timeline.Timeline
	timelineErr error
	subs        map[int]chan Event
	nextSub     int
}

// New creates a Session
func New(opts Options) *Session {
	s := &Session{
		Transport:  transport.New(opts.Clock),
		Automation: automation.NewSet(),
		rt:         opts.Runtime,
		log:        opts.Logger,
		subs:       make(map[int]chan Event),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.timeline, s.timelineErr = timeline.Compose(nil)

	var pusher lane.Pusher
	if opts.Runtime != nil {
		pusher = opts.Runtime
	}
	s.Lanes = lane.New(lane.Options{
		Pusher:   pusher,
		Source:   opts.Source,
		Locator:  opts.Locator,
		Debounce: opts.Debounce,
		Logger:   s.log,
		Geometry: opts.Geometry,
		Dispatch: opts.Dispatch,
		OnChange: func(c lane.Change) { s.publish(Event{Type: EventLanes, Data: c}) },
	})
	return s
}

// IngestState applies a full runtime snapshot: lanes refresh, the transport
// takes the embedded tick and the timeline is recomposed.
func (s *Session) IngestState(snap *runtime.Snapshot) lane.RefreshReport {
	if snap == nil {
		return lane.RefreshReport{}
	}
	rep := s.Lanes.Refresh(snap)
	if snap.Transport.BPM > 0 {
		s.IngestTransport(snap.Transport)
	}

	tl, err := timeline.Compose(snap)
	if err != nil {
		s.log.Warn("timeline composed with errors", "error", err)
	}
	s.mu.Lock()
	s.timeline, s.timelineErr = tl, err
	s.mu.Unlock()
	s.publish(Event{Type: EventTimeline, Data: tl})
	return rep
}

// IngestTransport applies an authoritative transport tick
func (s *Session) IngestTransport(t runtime.Transport) transport.Correction {
	c := s.Transport.Update(t)
	if c == transport.CorrectionHard {
		s.log.Debug("playhead resynced", "beat", t.CurrentBeat)
	}
	s.publish(Event{Type: EventTransport, Data: s.Transport.State()})
	return c
}

// Timeline returns the most recently composed timeline and any per-track
// expansion errors.
func (s *Session) Timeline() (timeline.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline, s.timelineErr
}

// Subscribe registers for events. The returned func unsubscribes and closes
// the channel. Events are dropped for subscribers that fall behind.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Session) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Debug("subscriber lagging, event dropped", "subscriber", id, "type", ev.Type)
		}
	}
}

func (s *Session) engine() (Runtime, error) {
	if s.rt == nil {
		return nil, apperr.Tag(ErrNoRuntime, apperr.RuntimePush, "no runtime is connected")
	}
	return s.rt, nil
}
