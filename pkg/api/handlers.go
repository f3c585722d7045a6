package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/converter"
	"github.com/james-see/patternsync/pkg/lane"
	"github.com/james-see/patternsync/pkg/message"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/timeline"
)

// laneView is a lane as views receive it
type laneView struct {
	lane.Lane
	Authority lane.Authority `json:"authority"`
	Pattern   string         `json:"pattern"`
	Anchored  bool           `json:"anchored"`
}

func viewOf(l lane.Lane) laneView {
	return laneView{Lane: l, Authority: l.Authority(), Pattern: l.Pattern(), Anchored: l.Anchored()}
}

type timelineView struct {
	timeline.Timeline
	Error string `json:"error,omitempty"`
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			respondError(c, err)
			return false
		}
		respondError(c, apperr.Invalid(err, "request body is not valid JSON"))
		return false
	}
	return true
}

// ingestState godoc
// @Summary Push a full runtime snapshot
// @Description Refreshes lanes, the timeline and the transport from runtime state
// @Tags runtime
// @Accept json
// @Produce json
// @Param snapshot body runtime.Snapshot true "Runtime state"
// @Success 200 {object} lane.RefreshReport
// @Failure 400 {object} map[string]string
// @Router /api/v1/runtime/state [post]
func (s *Server) ingestState(c *gin.Context) {
	var snap runtime.Snapshot
	if !bind(c, &snap) {
		return
	}
	c.JSON(http.StatusOK, s.session.IngestState(&snap))
}

// ingestTransport godoc
// @Summary Push a transport tick
// @Tags runtime
// @Accept json
// @Produce json
// @Param tick body runtime.Transport true "Transport tick"
// @Success 200 {object} map[string]string
// @Router /api/v1/runtime/transport [post]
func (s *Server) ingestTransport(c *gin.Context) {
	var t runtime.Transport
	if !bind(c, &t) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"correction": s.session.IngestTransport(t)})
}

// listLanes godoc
// @Summary List lanes
// @Tags lanes
// @Produce json
// @Success 200 {array} laneView
// @Router /api/v1/lanes [get]
func (s *Server) listLanes(c *gin.Context) {
	lanes := s.session.Lanes.Lanes()
	out := make([]laneView, 0, len(lanes))
	for _, l := range lanes {
		out = append(out, viewOf(l))
	}
	c.JSON(http.StatusOK, out)
}

// getLane godoc
// @Summary Get one lane
// @Tags lanes
// @Produce json
// @Param name path string true "Lane name"
// @Success 200 {object} laneView
// @Failure 404 {object} map[string]string
// @Router /api/v1/lanes/{name} [get]
func (s *Server) getLane(c *gin.Context) {
	l, ok := s.session.Lanes.Lane(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("lane %s not found", c.Param("name"))})
		return
	}
	c.JSON(http.StatusOK, viewOf(l))
}

// addLane godoc
// @Summary Add a lane for a pattern or voice
// @Tags lanes
// @Accept json
// @Produce json
// @Param lane body message.AddLane true "Pattern or voice name"
// @Success 201 {object} laneView
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/lanes [post]
func (s *Server) addLane(c *gin.Context) {
	var req message.AddLane
	if !bind(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, apperr.Invalid(err, err.Error()))
		return
	}
	out, err := s.session.Apply(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(out.(lane.Lane)))
}

// removeLane godoc
// @Summary Remove a lane, discarding unsaved edits
// @Tags lanes
// @Param name path string true "Lane name"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/lanes/{name} [delete]
func (s *Server) removeLane(c *gin.Context) {
	if err := s.session.Lanes.Remove(c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeBackLane godoc
// @Summary Write a lane back to its source definition
// @Tags lanes
// @Produce json
// @Param name path string true "Lane name"
// @Success 200 {object} laneView
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/lanes/{name}/writeback [post]
func (s *Server) writeBackLane(c *gin.Context) {
	name := c.Param("name")
	if err := s.session.Lanes.WriteBack(name); err != nil {
		respondError(c, err)
		return
	}
	l, _ := s.session.Lanes.Lane(name)
	c.JSON(http.StatusOK, viewOf(l))
}

// exportLaneMIDI godoc
// @Summary Export a lane as a MIDI file
// @Tags lanes
// @Produce audio/midi
// @Param name path string true "Lane name"
// @Param note query int false "MIDI note for hits (default 36)"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]string
// @Router /api/v1/lanes/{name}/midi [get]
func (s *Server) exportLaneMIDI(c *gin.Context) {
	name := c.Param("name")
	l, ok := s.session.Lanes.Lane(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("lane %s not found", name)})
		return
	}

	opts := s.convert
	if bpm := s.session.Transport.State().BPM; bpm > 0 {
		opts.Tempo = bpm
	}
	if n := c.Query("note"); n != "" {
		note, err := strconv.ParseUint(n, 10, 7)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "note must be 0-127"})
			return
		}
		opts.Note = uint8(note)
	}

	data, err := converter.NewMIDIConverter(opts).GenerateMIDI(l.Grid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.mid", name))
	c.Data(http.StatusOK, "audio/midi", data)
}

// loadGroup godoc
// @Summary Load every pattern of a group as lanes
// @Tags lanes
// @Accept json
// @Produce json
// @Param group body message.LoadGroup true "Group path"
// @Success 200 {object} map[string][]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/groups/load [post]
func (s *Server) loadGroup(c *gin.Context) {
	var req message.LoadGroup
	if !bind(c, &req) {
		return
	}
	added, err := s.session.Lanes.LoadGroup(req.Group, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	if added == nil {
		added = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// listCommands godoc
// @Summary List accepted view commands
// @Tags commands
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/commands [get]
func listCommands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commands": message.Commands()})
}

// applyCommand godoc
// @Summary Apply one view command
// @Description Body is a JSON object whose "command" field selects the operation
// @Tags commands
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/commands [post]
func (s *Server) applyCommand(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	cmd, err := message.Decode(data)
	if err != nil {
		respondError(c, err)
		return
	}
	out, err := s.session.Apply(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	if l, ok := out.(lane.Lane); ok {
		out = viewOf(l)
	}
	c.JSON(http.StatusOK, gin.H{"command": cmd.Command(), "result": out})
}

// writebackStatus godoc
// @Summary Lanes waiting on write-back
// @Description Pending lanes can be written back; unanchored lanes have no source definition
// @Tags lanes
// @Produce json
// @Success 200 {object} lane.WritebackStatus
// @Router /api/v1/writeback [get]
func (s *Server) writebackStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Lanes.WritebackStatus())
}

// getTimeline godoc
// @Summary Composed arrangement timeline
// @Tags timeline
// @Produce json
// @Success 200 {object} timelineView
// @Failure 404 {object} map[string]string
// @Router /api/v1/timeline [get]
func (s *Server) getTimeline(c *gin.Context) {
	tl, err := s.session.Timeline()
	if err != nil && !apperr.Is(err, apperr.Cycle) {
		respondError(c, err)
		return
	}
	view := timelineView{Timeline: tl}
	if err != nil {
		view.Error = err.Error()
	}
	c.JSON(http.StatusOK, view)
}

// getTransport godoc
// @Summary Interpolated transport position
// @Tags transport
// @Produce json
// @Success 200 {object} transport.State
// @Router /api/v1/transport [get]
func (s *Server) getTransport(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Transport.State())
}

// listAutomation godoc
// @Summary List automation lanes
// @Tags automation
// @Produce json
// @Success 200 {array} automation.Lane
// @Router /api/v1/automation [get]
func (s *Server) listAutomation(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Automation.Lanes())
}
