package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/converter"
)

// handleTextToMIDI godoc
// @Summary Convert pattern text to MIDI
// @Description Upload a .pat file and receive a MIDI file
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "Pattern file to convert"
// @Param bpm query number false "Tempo written to the file (default 120)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/text2midi [post]
func (s *Server) handleTextToMIDI(c *gin.Context) {
	s.handleConversion(c, converter.FormatText, converter.FormatMIDI)
}

// handleMIDIToText godoc
// @Summary Convert MIDI to pattern text
// @Description Upload a MIDI file and receive a .pat file
// @Tags convert
// @Accept multipart/form-data
// @Produce text/plain
// @Param file formData file true "MIDI file to convert"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/midi2text [post]
func (s *Server) handleMIDIToText(c *gin.Context) {
	s.handleConversion(c, converter.FormatMIDI, converter.FormatText)
}

func (s *Server) handleConversion(c *gin.Context, from, to converter.Format) {
	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	opts := s.convert
	if bpm := c.Query("bpm"); bpm != "" {
		if _, err := fmt.Sscanf(bpm, "%g", &opts.Tempo); err != nil || opts.Tempo <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bpm must be a positive number"})
			return
		}
	}
	conv := converter.New(opts)

	// Perform conversion
	var result []byte
	var outputExt, contentType string

	switch {
	case from == converter.FormatText && to == converter.FormatMIDI:
		result, err = conv.TextToMIDI(data)
		outputExt, contentType = ".mid", "audio/midi"
	case from == converter.FormatMIDI && to == converter.FormatText:
		result, err = conv.MIDIToText(data)
		outputExt, contentType = ".pat", "text/plain; charset=utf-8"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}

	if err != nil {
		if apperr.HTTPStatus(err) == http.StatusInternalServerError {
			err = apperr.Invalid(err, err.Error())
		}
		respondError(c, err)
		return
	}

	// Generate output filename
	outputName := header.Filename
	if dot := strings.LastIndex(outputName, "."); dot > 0 {
		outputName = outputName[:dot] + outputExt
	} else {
		outputName = "converted" + outputExt
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, contentType, result)
}
