package tui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/grid"
	"github.com/james-see/patternsync/pkg/lane"
	"github.com/james-see/patternsync/pkg/timeline"
)

// Acid-inspired color scheme (303/acid aesthetic)
var (
	// Primary colors - acid green and silver
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)

	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	playheadStyle = lipgloss.NewStyle().Foreground(acidYellow).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// timelineCols is the width of the arrangement strip
const timelineCols = 64

var helpText = map[State]string{
	StateMenu:       "↑/↓: navigate • enter: select • q: quit",
	StateLanes:      "↑/↓: lane • ←/→: step • space: toggle • a: accent • e: euclid • </>: shift • c: clear • w/W: write back • t: timeline • esc: menu",
	StateTimeline:   "l: lanes • esc: menu • q: quit",
	StateFilePicker: "esc: back to menu",
	StateConverting: "",
	StateResult:     "enter: continue • q: quit",
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render(" PATTERNSYNC "))
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateLanes:
		s.WriteString(m.viewLanes())
	case StateTimeline:
		s.WriteString(m.viewTimeline())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateConverting:
		s.WriteString(m.viewConverting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(helpText[m.state]))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT VIEW "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(acidYellow).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewLanes() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" LANES  beat %.2f ", m.beat)))
	s.WriteString("\n\n")

	if len(m.lanes) == 0 {
		s.WriteString(dimStyle.Render("no lanes loaded; load a group through the API or a view command"))
		return boxStyle.Render(s.String())
	}

	for i, l := range m.lanes {
		cursor := -1
		if i == m.laneIndex {
			cursor = m.cursor
		}
		name := fmt.Sprintf("%-16s", l.PatternName)
		if i == m.laneIndex {
			name = selectedStyle.Render("▸ " + name)
		} else {
			name = menuStyle.Render("  " + name)
		}
		s.WriteString(name)
		s.WriteString(" ")
		s.WriteString(laneMarker(l))
		s.WriteString(" ")
		s.WriteString(renderSteps(l.Grid, cursor, playheadStep(l.Grid, m.beat)))
		s.WriteString("\n")
	}

	if m.err != nil {
		s.WriteString(errorStyle.Render("✗ " + apperr.Message(m.err)))
	} else if m.status != "" {
		s.WriteString(statusStyle.Render(m.status))
	}

	return boxStyle.Render(s.String())
}

// laneMarker shows who owns the lane: * unsaved edits, ○ no source definition
func laneMarker(l lane.Lane) string {
	switch {
	case l.LocallyModified && !l.Anchored():
		return errorStyle.Render("○")
	case l.LocallyModified:
		return playheadStyle.Render("*")
	case l.IsPlaying:
		return successStyle.Render("▶")
	}
	return " "
}

// playheadStep maps beat onto the step the lane is sounding, -1 when the lane has no length
func playheadStep(g *grid.Grid, beat float64) int {
	loop := g.LoopBeats()
	total := g.Total()
	if loop <= 0 || total == 0 || beat < 0 {
		return -1
	}
	pos := math.Mod(beat, loop) / loop
	return int(pos * float64(total))
}

func renderSteps(g *grid.Grid, cursor, playhead int) string {
	var s strings.Builder
	for i := 0; i < g.Total(); i++ {
		if i > 0 && g.StepsPerBar > 0 && i%g.StepsPerBar == 0 {
			s.WriteString(dimStyle.Render("|"))
		}
		ch := "."
		switch step := g.At(i); {
		case step.On() && step.Accent:
			ch = "X"
		case step.On():
			ch = "x"
		}
		switch {
		case i == cursor:
			s.WriteString(cursorStyle.Render(ch))
		case i == playhead:
			s.WriteString(playheadStyle.Render(ch))
		default:
			s.WriteString(ch)
		}
	}
	return s.String()
}

func (m Model) viewTimeline() string {
	var s strings.Builder

	tl := m.timeline
	s.WriteString(titleStyle.Render(fmt.Sprintf(" TIMELINE  %s  %.0f beats ", tl.Mode, tl.MaxLoopBeats)))
	s.WriteString("\n\n")

	if m.tlErr != nil && !apperr.Is(m.tlErr, apperr.Cycle) {
		s.WriteString(dimStyle.Render("waiting for runtime state"))
		return boxStyle.Render(s.String())
	}

	head := -1
	if tl.MaxLoopBeats > 0 {
		head = int(math.Mod(m.beat, tl.MaxLoopBeats) / tl.MaxLoopBeats * timelineCols)
	}
	for _, track := range tl.Tracks {
		s.WriteString(menuStyle.Render(fmt.Sprintf("%-16s", track.Name)))
		s.WriteString(" ")
		if track.Error != "" {
			s.WriteString(errorStyle.Render(track.Error))
		} else {
			s.WriteString(renderTrack(track, tl.MaxLoopBeats, head))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

// renderTrack draws clips as colored runs scaled to timelineCols
func renderTrack(track timeline.Track, span float64, head int) string {
	cells := make([]string, timelineCols)
	for i := range cells {
		cells[i] = dimStyle.Render("·")
	}
	if span > 0 {
		for _, c := range track.Clips {
			from := int(c.StartBeat / span * timelineCols)
			to := int(math.Ceil(c.EndBeat / span * timelineCols))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color))
			glyph := "▒"
			if c.Active {
				glyph = "█"
			}
			for i := max(from, 0); i < min(to, timelineCols); i++ {
				cells[i] = style.Render(glyph)
			}
		}
	}
	if head >= 0 && head < timelineCols {
		cells[head] = playheadStyle.Render("│")
	}
	return strings.Join(cells, "")
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" SELECT %s FILE ", strings.ToUpper(string(m.conversion.FromFormat)))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())

	return s.String()
}

func (m Model) viewConverting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" CONVERTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Converting %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s → %s", m.conversion.FromFormat, m.conversion.ToFormat)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Conversion failed: %s", apperr.Message(m.err))))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Conversion complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output: %s", filepath.Base(m.outputFile)))
	}

	return boxStyle.Render(s.String())
}
