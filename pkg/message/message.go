// Package message defines the closed set of commands a view can send.
//
// Every message is a JSON object discriminated by its "command" field.
// Decode rejects unknown commands and invalid arguments at the boundary, so
// the session only ever sees well-formed values.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/james-see/patternsync/pkg/apperr"
)

var (
	ErrMissingCommand = errors.New("message has no command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalid        = errors.New("invalid command arguments")
)

// Command is one decoded view message
type Command interface {
	Command() string
	Validate() error
}

// Lane edits

type ToggleStep struct {
	Lane string `json:"lane"`
	Step int    `json:"step"`
}

type SetVelocity struct {
	Lane     string  `json:"lane"`
	Step     int     `json:"step"`
	Velocity float64 `json:"velocity"`
}

type SetAccent struct {
	Lane   string `json:"lane"`
	Step   int    `json:"step"`
	Accent bool   `json:"accent"`
}

type ApplyEuclidean struct {
	Lane string `json:"lane"`
	Hits int    `json:"hits"`
}

type Clear struct {
	Lane string `json:"lane"`
}

type Resize struct {
	Lane        string `json:"lane"`
	StepsPerBar int    `json:"stepsPerBar"`
	NumBars     int    `json:"numBars"`
	BeatsPerBar int    `json:"beatsPerBar"`
}

type ShiftSelection struct {
	Lane  string `json:"lane"`
	Steps []int  `json:"steps"`
	Delta int    `json:"delta"`
}

// WriteBack commits one lane, or every pending lane when Lane is empty
type WriteBack struct {
	Lane string `json:"lane,omitempty"`
}

// Lane membership

// AddLane adds a lane for a pattern, or an empty lane for a voice
type AddLane struct {
	Pattern string `json:"pattern,omitempty"`
	Voice   string `json:"voice,omitempty"`
}

type RemoveLane struct {
	Lane string `json:"lane"`
}

type LoadGroup struct {
	Group string `json:"group"`
}

// Runtime control

type Seek struct {
	Beat float64 `json:"beat"`
}

type Play struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type Stop struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type Mute struct {
	Group string `json:"group"`
}

type Unmute struct {
	Group string `json:"group"`
}

type Solo struct {
	Group string `json:"group"`
}

type Unsolo struct {
	Group string `json:"group"`
}

type SetGroupParam struct {
	Group string  `json:"group"`
	Param string  `json:"param"`
	Value float64 `json:"value"`
}

type TriggerVoice struct {
	Voice string `json:"voice"`
}

type NoteOn struct {
	Voice    string  `json:"voice"`
	Note     int     `json:"note"`
	Velocity float64 `json:"velocity"`
}

type NoteOff struct {
	Voice string `json:"voice"`
	Note  int    `json:"note"`
}

// Source buffers

type BufferChanged struct {
	File string `json:"file"`
	Text string `json:"text"`
}

type BufferClosed struct {
	File string `json:"file"`
}

// Automation

type CreateAutomationLane struct {
	TargetType string  `json:"targetType"`
	TargetName string  `json:"targetName"`
	Param      string  `json:"param"`
	MinValue   float64 `json:"minValue"`
	MaxValue   float64 `json:"maxValue"`
	Color      string  `json:"color,omitempty"`
}

type DeleteAutomationLane struct {
	Lane string `json:"lane"`
}

type AddAutomationPoint struct {
	Lane  string  `json:"lane"`
	Beat  float64 `json:"beat"`
	Value float64 `json:"value"`
	Curve string  `json:"curveType,omitempty"`
}

type MoveAutomationPoint struct {
	Lane  string  `json:"lane"`
	Point string  `json:"point"`
	Beat  float64 `json:"beat"`
	Value float64 `json:"value"`
}

type RemoveAutomationPoint struct {
	Lane  string `json:"lane"`
	Point string `json:"point"`
}

var registry = map[string]func() Command{
	"toggleStep":            func() Command { return &ToggleStep{} },
	"setVelocity":           func() Command { return &SetVelocity{} },
	"setAccent":             func() Command { return &SetAccent{} },
	"applyEuclidean":        func() Command { return &ApplyEuclidean{} },
	"clear":                 func() Command { return &Clear{} },
	"resize":                func() Command { return &Resize{} },
	"shiftSelection":        func() Command { return &ShiftSelection{} },
	"writeBack":             func() Command { return &WriteBack{} },
	"addLane":               func() Command { return &AddLane{} },
	"removeLane":            func() Command { return &RemoveLane{} },
	"loadGroup":             func() Command { return &LoadGroup{} },
	"seek":                  func() Command { return &Seek{} },
	"play":                  func() Command { return &Play{} },
	"stop":                  func() Command { return &Stop{} },
	"mute":                  func() Command { return &Mute{} },
	"unmute":                func() Command { return &Unmute{} },
	"solo":                  func() Command { return &Solo{} },
	"unsolo":                func() Command { return &Unsolo{} },
	"setGroupParam":         func() Command { return &SetGroupParam{} },
	"triggerVoice":          func() Command { return &TriggerVoice{} },
	"noteOn":                func() Command { return &NoteOn{} },
	"noteOff":               func() Command { return &NoteOff{} },
	"bufferChanged":         func() Command { return &BufferChanged{} },
	"bufferClosed":          func() Command { return &BufferClosed{} },
	"createAutomationLane":  func() Command { return &CreateAutomationLane{} },
	"deleteAutomationLane":  func() Command { return &DeleteAutomationLane{} },
	"addAutomationPoint":    func() Command { return &AddAutomationPoint{} },
	"moveAutomationPoint":   func() Command { return &MoveAutomationPoint{} },
	"removeAutomationPoint": func() Command { return &RemoveAutomationPoint{} },
}

// Commands lists every accepted command name
func Commands() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Decode parses and validates one message
func Decode(data []byte) (Command, error) {
	var env struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperr.Invalid(err, "message is not a JSON object")
	}
	if env.Command == "" {
		return nil, apperr.Invalid(ErrMissingCommand, "message has no command")
	}
	factory, ok := registry[env.Command]
	if !ok {
		return nil, apperr.Invalid(fmt.Errorf("%q: %w", env.Command, ErrUnknownCommand), fmt.Sprintf("unknown command %s", env.Command))
	}

	cmd := factory()
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(cmd); err != nil {
		return nil, apperr.Invalid(err, fmt.Sprintf("malformed %s arguments", env.Command))
	}
	if err := cmd.Validate(); err != nil {
		return nil, apperr.Invalid(fmt.Errorf("%s: %w", env.Command, err), fmt.Sprintf("%s: %s", env.Command, err))
	}
	return cmd, nil
}

// Encode renders a command with its discriminator
func Encode(cmd Command) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	name, _ := json.Marshal(cmd.Command())
	fields["command"] = name
	return json.Marshal(fields)
}
