// Package tui provides a terminal lane editor for patternsync
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/patternsync/pkg/converter"
	"github.com/james-see/patternsync/pkg/lane"
	"github.com/james-see/patternsync/pkg/message"
	"github.com/james-see/patternsync/pkg/session"
	"github.com/james-see/patternsync/pkg/timeline"
)

// frameInterval paces the playhead redraw
const frameInterval = 50 * time.Millisecond

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateLanes
	StateTimeline
	StateFilePicker
	StateConverting
	StateResult
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Target      State
	FromFormat  converter.Format
	ToFormat    converter.Format
}

var menuItems = []MenuItem{
	{Title: "Lanes", Description: "Edit pattern lanes against the live runtime", Target: StateLanes},
	{Title: "Timeline", Description: "Show the arrangement timeline with the playhead", Target: StateTimeline},
	{Title: "PAT → MIDI", Description: "Convert a pattern text file to a MIDI file", Target: StateFilePicker, FromFormat: converter.FormatText, ToFormat: converter.FormatMIDI},
	{Title: "MIDI → PAT", Description: "Convert a MIDI file to pattern text", Target: StateFilePicker, FromFormat: converter.FormatMIDI, ToFormat: converter.FormatText},
	{Title: "Exit", Description: "Exit the application"},
}

// Model represents the TUI model
type Model struct {
	sess   *session.Session
	events <-chan session.Event
	opts   converter.Options

	state     State
	menuIndex int
	laneIndex int
	cursor    int
	lanes     []lane.Lane
	timeline  timeline.Timeline
	tlErr     error
	beat      float64
	status    string

	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	outputFile   string
	conversion   MenuItem
	err          error
	width        int
	height       int
}

// eventMsg carries one session event
type eventMsg session.Event

// closedMsg signals the event subscription ended
type closedMsg struct{}

// frameMsg redraws the playhead
type frameMsg time.Time

// appliedMsg reports the outcome of a command sent to the session
type appliedMsg struct {
	status string
	err    error
}

// conversionDoneMsg signals conversion completion
type conversionDoneMsg struct {
	outputFile string
	err        error
}

// New creates a new TUI model. events is the session subscription the
// model redraws from; nil leaves the view static until a command runs.
func New(sess *session.Session, events <-chan session.Event, opts converter.Options) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = []string{".pat", ".txt", ".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(acidGreen)

	m := Model{
		sess:       sess,
		events:     events,
		opts:       opts,
		state:      StateMenu,
		filePicker: fp,
		spinner:    s,
	}
	m.reload()
	return m
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events), frame())
}

func waitForEvent(events <-chan session.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// reload copies lane and timeline state out of the session
func (m *Model) reload() {
	m.lanes = m.sess.Lanes.Lanes()
	if m.laneIndex >= len(m.lanes) {
		m.laneIndex = max(len(m.lanes)-1, 0)
	}
	if l, ok := m.current(); ok && m.cursor >= l.Grid.Total() {
		m.cursor = max(l.Grid.Total()-1, 0)
	}
	m.timeline, m.tlErr = m.sess.Timeline()
	m.beat = m.sess.Transport.Beat()
}

func (m Model) current() (lane.Lane, bool) {
	if m.laneIndex < 0 || m.laneIndex >= len(m.lanes) {
		return lane.Lane{}, false
	}
	return m.lanes[m.laneIndex], true
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		// Check for escape/quit keys first
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		// Pass all other messages to the file picker
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		// Check if file was selected
		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateConverting
			return m, tea.Batch(m.spinner.Tick, m.performConversion())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateLanes:
			return m.updateLanes(msg)
		case StateTimeline:
			return m.updateTimeline(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case eventMsg:
		m.reload()
		return m, waitForEvent(m.events)

	case closedMsg:
		m.events = nil
		return m, nil

	case frameMsg:
		m.beat = m.sess.Transport.Beat()
		return m, frame()

	case appliedMsg:
		m.status, m.err = msg.status, msg.err
		m.reload()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case conversionDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		item := menuItems[m.menuIndex]
		if m.menuIndex == len(menuItems)-1 {
			return m, tea.Quit
		}
		m.state = item.Target
		m.err, m.status = nil, ""
		if item.Target != StateFilePicker {
			m.reload()
			return m, nil
		}
		m.conversion = item

		// Set file picker filter based on input format
		switch item.FromFormat {
		case converter.FormatMIDI:
			m.filePicker.AllowedTypes = []string{".mid", ".midi"}
		case converter.FormatText:
			m.filePicker.AllowedTypes = []string{".pat", ".txt"}
		}

		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateLanes(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.state = StateMenu
		return m, nil
	case "t":
		m.state = StateTimeline
		return m, nil
	case "up", "k":
		if m.laneIndex > 0 {
			m.laneIndex--
		}
	case "down", "j":
		if m.laneIndex < len(m.lanes)-1 {
			m.laneIndex++
		}
	case "W":
		return m, m.apply(&message.WriteBack{}, "wrote all pending lanes")
	}

	l, ok := m.current()
	if !ok {
		return m, nil
	}
	total := l.Grid.Total()
	name := l.PatternName

	switch msg.String() {
	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l":
		if m.cursor < total-1 {
			m.cursor++
		}
	case " ", "x":
		return m, m.apply(&message.ToggleStep{Lane: name, Step: m.cursor}, "")
	case "a":
		step := l.Grid.At(m.cursor)
		return m, m.apply(&message.SetAccent{Lane: name, Step: m.cursor, Accent: !step.Accent}, "")
	case "e":
		hits := (l.Grid.Hits() + 1) % (total + 1)
		return m, m.apply(&message.ApplyEuclidean{Lane: name, Hits: hits}, fmt.Sprintf("%s: %d hits", name, hits))
	case "<", ">":
		delta := 1
		if msg.String() == "<" {
			delta = -1
		}
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return m, m.apply(&message.ShiftSelection{Lane: name, Steps: all, Delta: delta}, "")
	case "c":
		return m, m.apply(&message.Clear{Lane: name}, name+" cleared")
	case "w":
		return m, m.apply(&message.WriteBack{Lane: name}, name+" written")
	}
	return m, nil
}

func (m Model) updateTimeline(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.state = StateMenu
	case "l":
		m.state = StateLanes
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// apply runs cmd against the session off the update loop
func (m Model) apply(cmd message.Command, status string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		if err := cmd.Validate(); err != nil {
			return appliedMsg{err: err}
		}
		out, err := sess.Apply(context.Background(), cmd)
		if err != nil {
			return appliedMsg{err: err}
		}
		if res, ok := out.(session.WriteBackResult); ok && len(res.Failed) > 0 {
			return appliedMsg{status: status, err: fmt.Errorf("%d lanes failed to write back", len(res.Failed))}
		}
		return appliedMsg{status: status}
	}
}

func (m Model) performConversion() tea.Cmd {
	return func() tea.Msg {
		conv := converter.New(m.opts)

		data, err := os.ReadFile(m.selectedFile)
		if err != nil {
			return conversionDoneMsg{err: err}
		}

		var result []byte
		var outputExt string

		switch m.conversion.ToFormat {
		case converter.FormatMIDI:
			result, err = conv.TextToMIDI(data)
			outputExt = ".mid"
		case converter.FormatText:
			result, err = conv.MIDIToText(data)
			outputExt = ".pat"
		}

		if err != nil {
			return conversionDoneMsg{err: err}
		}

		// Generate output filename
		base := strings.TrimSuffix(m.selectedFile, filepath.Ext(m.selectedFile))
		outputFile := base + outputExt

		err = os.WriteFile(outputFile, result, 0644)
		if err != nil {
			return conversionDoneMsg{err: err}
		}

		return conversionDoneMsg{outputFile: outputFile}
	}
}

// Run starts the TUI application against sess
func Run(sess *session.Session, opts converter.Options) error {
	events, cancel := sess.Subscribe()
	defer cancel()

	p := tea.NewProgram(New(sess, events, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
