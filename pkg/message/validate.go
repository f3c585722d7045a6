package message

import "fmt"

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

func needLane(lane string) error {
	if lane == "" {
		return invalid("lane is required")
	}
	return nil
}

func needStep(lane string, step int) error {
	if err := needLane(lane); err != nil {
		return err
	}
	if step < 0 {
		return invalid("step %d is negative", step)
	}
	return nil
}

func needUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return invalid("%s %v is outside 0-1", name, v)
	}
	return nil
}

func needGroup(group string) error {
	if group == "" {
		return invalid("group is required")
	}
	return nil
}

func needNote(voice string, note int) error {
	if voice == "" {
		return invalid("voice is required")
	}
	if note < 0 || note > 127 {
		return invalid("note %d is outside 0-127", note)
	}
	return nil
}

func needKind(kind, name string) error {
	switch kind {
	case "pattern", "melody", "sequence":
	default:
		return invalid("kind %q must be pattern, melody or sequence", kind)
	}
	if name == "" {
		return invalid("name is required")
	}
	return nil
}

func (ToggleStep) Command() string     { return "toggleStep" }
func (c ToggleStep) Validate() error   { return needStep(c.Lane, c.Step) }
func (SetVelocity) Command() string    { return "setVelocity" }
func (SetAccent) Command() string      { return "setAccent" }
func (c SetAccent) Validate() error    { return needStep(c.Lane, c.Step) }
func (ApplyEuclidean) Command() string { return "applyEuclidean" }
func (Clear) Command() string          { return "clear" }
func (c Clear) Validate() error        { return needLane(c.Lane) }
func (Resize) Command() string         { return "resize" }
func (ShiftSelection) Command() string { return "shiftSelection" }
func (WriteBack) Command() string      { return "writeBack" }
func (WriteBack) Validate() error      { return nil }
func (AddLane) Command() string        { return "addLane" }
func (RemoveLane) Command() string     { return "removeLane" }
func (c RemoveLane) Validate() error   { return needLane(c.Lane) }
func (LoadGroup) Command() string      { return "loadGroup" }
func (c LoadGroup) Validate() error    { return needGroup(c.Group) }
func (Seek) Command() string           { return "seek" }
func (Play) Command() string           { return "play" }
func (c Play) Validate() error         { return needKind(c.Kind, c.Name) }
func (Stop) Command() string           { return "stop" }
func (c Stop) Validate() error         { return needKind(c.Kind, c.Name) }
func (Mute) Command() string           { return "mute" }
func (c Mute) Validate() error         { return needGroup(c.Group) }
func (Unmute) Command() string         { return "unmute" }
func (c Unmute) Validate() error       { return needGroup(c.Group) }
func (Solo) Command() string           { return "solo" }
func (c Solo) Validate() error         { return needGroup(c.Group) }
func (Unsolo) Command() string         { return "unsolo" }
func (c Unsolo) Validate() error       { return needGroup(c.Group) }
func (SetGroupParam) Command() string  { return "setGroupParam" }
func (TriggerVoice) Command() string   { return "triggerVoice" }
func (NoteOn) Command() string         { return "noteOn" }
func (NoteOff) Command() string        { return "noteOff" }
func (c NoteOff) Validate() error      { return needNote(c.Voice, c.Note) }
func (BufferChanged) Command() string  { return "bufferChanged" }
func (BufferClosed) Command() string   { return "bufferClosed" }

func (CreateAutomationLane) Command() string   { return "createAutomationLane" }
func (DeleteAutomationLane) Command() string   { return "deleteAutomationLane" }
func (c DeleteAutomationLane) Validate() error { return needLane(c.Lane) }
func (AddAutomationPoint) Command() string     { return "addAutomationPoint" }
func (MoveAutomationPoint) Command() string    { return "moveAutomationPoint" }
func (RemoveAutomationPoint) Command() string  { return "removeAutomationPoint" }

func (c SetVelocity) Validate() error {
	if err := needStep(c.Lane, c.Step); err != nil {
		return err
	}
	return needUnit("velocity", c.Velocity)
}

func (c ApplyEuclidean) Validate() error {
	if err := needLane(c.Lane); err != nil {
		return err
	}
	if c.Hits < 0 {
		return invalid("hits %d is negative", c.Hits)
	}
	return nil
}

func (c Resize) Validate() error {
	if err := needLane(c.Lane); err != nil {
		return err
	}
	if c.StepsPerBar <= 0 || c.NumBars <= 0 || c.BeatsPerBar <= 0 {
		return invalid("geometry %d/%d/%d must be positive", c.StepsPerBar, c.NumBars, c.BeatsPerBar)
	}
	return nil
}

func (c ShiftSelection) Validate() error {
	if err := needLane(c.Lane); err != nil {
		return err
	}
	for _, s := range c.Steps {
		if s < 0 {
			return invalid("step %d is negative", s)
		}
	}
	return nil
}

func (c AddLane) Validate() error {
	if (c.Pattern == "") == (c.Voice == "") {
		return invalid("exactly one of pattern or voice is required")
	}
	return nil
}

func (c Seek) Validate() error {
	if c.Beat < 0 {
		return invalid("beat %v is negative", c.Beat)
	}
	return nil
}

func (c SetGroupParam) Validate() error {
	if err := needGroup(c.Group); err != nil {
		return err
	}
	if c.Param == "" {
		return invalid("param is required")
	}
	return nil
}

func (c TriggerVoice) Validate() error {
	if c.Voice == "" {
		return invalid("voice is required")
	}
	return nil
}

func (c NoteOn) Validate() error {
	if err := needNote(c.Voice, c.Note); err != nil {
		return err
	}
	return needUnit("velocity", c.Velocity)
}

func (c BufferChanged) Validate() error {
	if c.File == "" {
		return invalid("file is required")
	}
	return nil
}

func (c BufferClosed) Validate() error {
	if c.File == "" {
		return invalid("file is required")
	}
	return nil
}

func (c CreateAutomationLane) Validate() error {
	if c.TargetName == "" || c.Param == "" {
		return invalid("target name and param are required")
	}
	if c.MinValue >= c.MaxValue {
		return invalid("minValue must be below maxValue")
	}
	return nil
}

func (c AddAutomationPoint) Validate() error {
	if err := needLane(c.Lane); err != nil {
		return err
	}
	if c.Beat < 0 {
		return invalid("beat %v is negative", c.Beat)
	}
	return nil
}

func (c MoveAutomationPoint) Validate() error {
	if err := needLane(c.Lane); err != nil {
		return err
	}
	if c.Point == "" {
		return invalid("point is required")
	}
	if c.Beat < 0 {
		return invalid("beat %v is negative", c.Beat)
	}
	return nil
}

func (c RemoveAutomationPoint) Validate() error {
	if err := needLane(c.Lane); err != nil {
		return err
	}
	if c.Point == "" {
		return invalid("point is required")
	}
	return nil
}
