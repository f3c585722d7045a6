package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/patternsync/pkg/grid"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatText    Format = "text"
	FormatUnknown Format = "unknown"
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi":
		return FormatMIDI
	case ".pat", ".txt":
		return FormatText
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}
	if Valid(string(data)) {
		return FormatText
	}
	return FormatUnknown
}

// ConvertFile converts a pattern file from one format to another
func (c *Converter) ConvertFile(inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown {
		inputFormat = DetectFormatFromContent(data)
	}
	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return fmt.Errorf("cannot determine output format from filename %q", outputPath)
	}

	var outputData []byte
	switch {
	case inputFormat == FormatText && outputFormat == FormatMIDI:
		outputData, err = c.TextToMIDI(data)
	case inputFormat == FormatMIDI && outputFormat == FormatText:
		outputData, err = c.MIDIToText(data)
	case inputFormat == outputFormat && inputFormat == FormatText:
		var g *grid.Grid
		if g, err = Decode(string(data)); err == nil {
			outputData = []byte(Encode(g) + "\n")
		}
	default:
		return fmt.Errorf("unsupported conversion: %s to %s", inputFormat, outputFormat)
	}
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// TextToMIDI converts pattern text to a Standard MIDI File
func (c *Converter) TextToMIDI(text []byte) ([]byte, error) {
	g, err := Decode(string(text))
	if err != nil {
		return nil, err
	}
	return NewMIDIConverter(c.opts).GenerateMIDI(g)
}

// MIDIToText converts a Standard MIDI File to pattern text
func (c *Converter) MIDIToText(data []byte) ([]byte, error) {
	g, err := NewMIDIConverter(c.opts).ParseMIDI(data)
	if err != nil {
		return nil, err
	}
	return []byte(Encode(g) + "\n"), nil
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"text -> midi",
		"midi -> text",
		"text -> text",
	}
}
