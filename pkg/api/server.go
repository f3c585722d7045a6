// Package api provides the REST API server for patternsync
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/converter"
	"github.com/james-see/patternsync/pkg/session"
)

// maxBodyBytes bounds request bodies; snapshots of large sets stay well under it
const maxBodyBytes = 8 << 20

// @title patternsync API
// @version 1.0
// @description Synchronizes pattern lanes and the arrangement timeline between source text, a live runtime and editor views
// @host localhost:8080
// @BasePath /api/v1

// Server serves one session over HTTP
type Server struct {
	session *session.Session
	convert converter.Options
	log     *slog.Logger
}

// NewServer creates a Server. opts sets the note and geometry used by MIDI
// export and conversion endpoints.
func NewServer(sess *session.Session, opts converter.Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{session: sess, convert: opts, log: log}
}

// Router builds the gin engine with every route
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())
	r.Use(limitBody(maxBodyBytes))

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)

		v1.POST("/runtime/state", s.ingestState)
		v1.POST("/runtime/transport", s.ingestTransport)

		v1.GET("/lanes", s.listLanes)
		v1.POST("/lanes", s.addLane)
		v1.GET("/lanes/:name", s.getLane)
		v1.DELETE("/lanes/:name", s.removeLane)
		v1.POST("/lanes/:name/writeback", s.writeBackLane)
		v1.GET("/lanes/:name/midi", s.exportLaneMIDI)
		v1.POST("/groups/load", s.loadGroup)

		v1.GET("/commands", listCommands)
		v1.POST("/commands", s.applyCommand)

		v1.GET("/writeback", s.writebackStatus)
		v1.GET("/timeline", s.getTimeline)
		v1.GET("/transport", s.getTransport)
		v1.GET("/automation", s.listAutomation)
		v1.GET("/events", s.streamEvents)

		v1.POST("/convert/text2midi", s.handleTextToMIDI)
		v1.POST("/convert/midi2text", s.handleMIDIToText)
		v1.GET("/formats", listFormats)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// Start serves on port until ctx is cancelled, then drains connections
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("api listening", "port", port)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// respondError writes err with the status its failure class maps to
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "patternsync",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns a list of supported file formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{"text", "midi"},
		"conversions": converter.GetSupportedConversions(),
	})
}
