package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/james-see/patternsync/pkg/session"
)

// keepAlive is how often an idle event stream gets a ping
const keepAlive = 15 * time.Second

// streamEvents godoc
// @Summary Server-sent event stream of lane, timeline, transport and automation updates
// @Description The first event is a "lanes" snapshot; later events carry changes
// @Tags events
// @Produce text/event-stream
// @Router /api/v1/events [get]
func (s *Server) streamEvents(c *gin.Context) {
	events, cancel := s.session.Subscribe()
	defer cancel()

	lanes := s.session.Lanes.Lanes()
	views := make([]laneView, 0, len(lanes))
	for _, l := range lanes {
		views = append(views, viewOf(l))
	}
	c.SSEvent(session.EventLanes, gin.H{"reason": "snapshot", "lanes": views})
	c.Writer.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev.Data)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}
