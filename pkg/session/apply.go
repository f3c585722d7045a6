package session

import (
	"context"
	"fmt"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/automation"
	"github.com/james-see/patternsync/pkg/grid"
	"github.com/james-see/patternsync/pkg/message"
	"github.com/james-see/patternsync/pkg/runtime"
)

// WriteBackResult reports a write-back of one or all lanes
type WriteBackResult struct {
	Written []string          `json:"written"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// Apply executes one view command. Lane edits return the edited lane;
// commands with nothing to report return nil.
func (s *Session) Apply(ctx context.Context, cmd message.Command) (any, error) {
	switch c := cmd.(type) {
	case *message.ToggleStep:
		return s.laneAfter(c.Lane, s.Lanes.ToggleStep(c.Lane, c.Step))
	case *message.SetVelocity:
		return s.laneAfter(c.Lane, s.Lanes.SetVelocity(c.Lane, c.Step, c.Velocity))
	case *message.SetAccent:
		return s.laneAfter(c.Lane, s.Lanes.SetAccent(c.Lane, c.Step, c.Accent))
	case *message.ApplyEuclidean:
		_, err := s.Lanes.ApplyEuclidean(c.Lane, c.Hits)
		return s.laneAfter(c.Lane, err)
	case *message.Clear:
		return s.laneAfter(c.Lane, s.Lanes.Clear(c.Lane))
	case *message.Resize:
		cfg := grid.Config{StepsPerBar: c.StepsPerBar, NumBars: c.NumBars, BeatsPerBar: c.BeatsPerBar}
		return s.laneAfter(c.Lane, s.Lanes.Resize(c.Lane, cfg))
	case *message.ShiftSelection:
		return s.laneAfter(c.Lane, s.Lanes.Shift(c.Lane, c.Steps, c.Delta))
	case *message.WriteBack:
		return s.writeBack(c.Lane)

	case *message.AddLane:
		if c.Voice != "" {
			return s.Lanes.AddVoice(c.Voice)
		}
		return s.Lanes.AddPattern(c.Pattern)
	case *message.RemoveLane:
		return nil, s.Lanes.Remove(c.Lane)
	case *message.LoadGroup:
		return s.Lanes.LoadGroup(c.Group, nil)

	case *message.Seek:
		return nil, s.call("seek", func(rt Runtime) error { return rt.Seek(ctx, c.Beat) })
	case *message.Play:
		return nil, s.call("start", func(rt Runtime) error { return rt.Start(ctx, runtime.Kind(c.Kind), c.Name) })
	case *message.Stop:
		return nil, s.call("stop", func(rt Runtime) error { return rt.Stop(ctx, runtime.Kind(c.Kind), c.Name) })
	case *message.Mute:
		return nil, s.call("mute", func(rt Runtime) error { return rt.MuteGroup(ctx, c.Group) })
	case *message.Unmute:
		return nil, s.call("unmute", func(rt Runtime) error { return rt.UnmuteGroup(ctx, c.Group) })
	case *message.Solo:
		return nil, s.call("solo", func(rt Runtime) error { return rt.SoloGroup(ctx, c.Group) })
	case *message.Unsolo:
		return nil, s.call("unsolo", func(rt Runtime) error { return rt.UnsoloGroup(ctx, c.Group) })
	case *message.SetGroupParam:
		return nil, s.call("set group param", func(rt Runtime) error { return rt.SetGroupParam(ctx, c.Group, c.Param, c.Value) })
	case *message.TriggerVoice:
		return nil, s.call("trigger voice", func(rt Runtime) error { return rt.TriggerVoice(ctx, c.Voice) })
	case *message.NoteOn:
		return nil, s.call("note on", func(rt Runtime) error { return rt.NoteOn(ctx, c.Voice, c.Note, c.Velocity) })
	case *message.NoteOff:
		return nil, s.call("note off", func(rt Runtime) error { return rt.NoteOff(ctx, c.Voice, c.Note) })

	case *message.BufferChanged:
		s.Lanes.BufferChanged(c.File, c.Text)
		return nil, nil
	case *message.BufferClosed:
		s.Lanes.BufferClosed(c.File)
		return nil, nil

	case *message.CreateAutomationLane:
		target := automation.Target{Type: c.TargetType, Name: c.TargetName, Param: c.Param}
		l, err := s.Automation.Create(target, c.MinValue, c.MaxValue, c.Color)
		return s.automationAfter(l, err)
	case *message.DeleteAutomationLane:
		if err := s.Automation.Delete(c.Lane); err != nil {
			return nil, err
		}
		s.publish(Event{Type: EventAutomation, Data: s.Automation.Lanes()})
		return nil, nil
	case *message.AddAutomationPoint:
		p, err := s.Automation.AddPoint(c.Lane, c.Beat, c.Value, automation.Curve(c.Curve))
		return s.automationAfter(p, err)
	case *message.MoveAutomationPoint:
		p, err := s.Automation.MovePoint(c.Lane, c.Point, c.Beat, c.Value)
		return s.automationAfter(p, err)
	case *message.RemoveAutomationPoint:
		return s.automationAfter(nil, s.Automation.RemovePoint(c.Lane, c.Point))
	}
	return nil, apperr.Invalid(fmt.Errorf("%T: %w", cmd, message.ErrUnknownCommand), "unsupported command")
}

func (s *Session) laneAfter(name string, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	l, ok := s.Lanes.Lane(name)
	if !ok {
		return nil, nil
	}
	return l, nil
}

func (s *Session) automationAfter(v any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	s.publish(Event{Type: EventAutomation, Data: s.Automation.Lanes()})
	return v, nil
}

func (s *Session) writeBack(name string) (WriteBackResult, error) {
	res := WriteBackResult{Written: []string{}}
	if name != "" {
		if err := s.Lanes.WriteBack(name); err != nil {
			return res, err
		}
		res.Written = append(res.Written, name)
		return res, nil
	}

	pending := s.Lanes.WritebackStatus().Pending
	failed := s.Lanes.WriteBackAll()
	for _, n := range pending {
		if err, ok := failed[n]; ok {
			if res.Failed == nil {
				res.Failed = make(map[string]string)
			}
			res.Failed[n] = apperr.Message(err)
			continue
		}
		res.Written = append(res.Written, n)
	}
	return res, nil
}

// call runs a runtime control request. Unlike pattern pushes these answer a
// direct user action, so failures are returned.
func (s *Session) call(what string, fn func(Runtime) error) error {
	rt, err := s.engine()
	if err != nil {
		return err
	}
	if err := fn(rt); err != nil {
		s.log.Warn("runtime call failed", "call", what, "error", err)
		return apperr.Tag(err, apperr.RuntimePush, fmt.Sprintf("runtime %s failed", what))
	}
	return nil
}
