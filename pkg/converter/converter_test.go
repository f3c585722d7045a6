package converter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/grid"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"kick.mid", FormatMIDI},
		{"kick.midi", FormatMIDI},
		{"kick.pat", FormatText},
		{"kick.txt", FormatText},
		{"kick.seq", FormatUnknown},
		{"kick", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result := DetectFormat(tt.filename)
			if result != tt.expected {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, result, tt.expected)
			}
		})
	}
}

func TestDetectFormatFromContent(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"MIDI file", []byte("MThd\x00\x00\x00\x06"), FormatMIDI},
		{"unequal pattern text", []byte("x...x...|x..X\n"), FormatUnknown},
		{"valid pattern text", []byte("x...|x..X\n"), FormatText},
		{"binary", []byte{0x00, 0x01}, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormatFromContent(tt.data)
			if result != tt.expected {
				t.Errorf("DetectFormatFromContent() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestConvertFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "kick.pat")
	mid := filepath.Join(dir, "kick.mid")
	out := filepath.Join(dir, "back.pat")

	if err := os.WriteFile(in, []byte("x..X|.x.."), 0644); err != nil {
		t.Fatal(err)
	}

	conv := New(Options{Tempo: 128, Note: 36, Grid: grid.Config{StepsPerBar: 4, NumBars: 2, BeatsPerBar: 4}})
	if err := conv.ConvertFile(in, mid); err != nil {
		t.Fatalf("ConvertFile(text->midi) error = %v", err)
	}
	if err := conv.ConvertFile(mid, out); err != nil {
		t.Fatalf("ConvertFile(midi->text) error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "x..X|.x..\n" {
		t.Errorf("round trip = %q, want %q", data, "x..X|.x..\n")
	}
}

func TestConvertFileUnknownOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "kick.pat")
	if err := os.WriteFile(in, []byte("x..."), 0644); err != nil {
		t.Fatal(err)
	}
	if err := New(DefaultOptions()).ConvertFile(in, filepath.Join(dir, "kick.wav")); err == nil {
		t.Error("ConvertFile() expected error for unknown output format")
	}
}

func TestGenerateMIDITempo(t *testing.T) {
	g, err := Decode("x...x...x...x...")
	if err != nil {
		t.Fatal(err)
	}

	data, err := NewMIDIConverter(Options{Tempo: 140, Note: 38}).GenerateMIDI(g)
	if err != nil {
		t.Fatalf("GenerateMIDI() error = %v", err)
	}
	if string(data[:4]) != "MThd" {
		t.Fatalf("header = %q, want MThd", data[:4])
	}

	mc := NewMIDIConverter(DefaultOptions())
	back, err := mc.ParseMIDI(data)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}
	if diff := mc.Tempo() - 140; diff > 0.01 || diff < -0.01 {
		t.Errorf("Tempo() = %v, want 140", mc.Tempo())
	}
	if Encode(back) != "x...x...x...x..." {
		t.Errorf("ParseMIDI() = %q, want %q", Encode(back), "x...x...x...x...")
	}
}

func TestGenerateMIDIInvalid(t *testing.T) {
	mc := NewMIDIConverter(DefaultOptions())
	if _, err := mc.GenerateMIDI(nil); err == nil {
		t.Error("GenerateMIDI(nil) expected error")
	}
	if _, err := mc.GenerateMIDI(&grid.Grid{}); err == nil {
		t.Error("GenerateMIDI(empty) expected error")
	}
	if _, err := mc.ParseMIDI([]byte("not midi")); err == nil {
		t.Error("ParseMIDI() expected error for garbage")
	}
}

func TestGetSupportedConversions(t *testing.T) {
	conversions := GetSupportedConversions()
	if len(conversions) != 3 {
		t.Errorf("GetSupportedConversions() returned %d conversions, want 3", len(conversions))
	}
}

func TestTextToMIDIDecodeError(t *testing.T) {
	_, err := New(DefaultOptions()).TextToMIDI([]byte("x..|x."))
	if !errors.Is(err, ErrUnequalBars) {
		t.Errorf("TextToMIDI() error = %v, want ErrUnequalBars", err)
	}
	if !apperr.Is(err, apperr.Decode) {
		t.Error("decode failures should carry the Decode tag")
	}
}
