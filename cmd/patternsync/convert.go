package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/james-see/patternsync/pkg/converter"
	"github.com/james-see/patternsync/pkg/grid"
)

var loopBeats float64

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between formats",
	Long:  `Automatically detects input format and converts to the output format based on file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var text2midiCmd = &cobra.Command{
	Use:   "text2midi <input.pat>",
	Short: "Convert pattern text to MIDI",
	Args:  cobra.ExactArgs(1),
	RunE:  runTextToMIDI,
}

var midi2textCmd = &cobra.Command{
	Use:   "midi2text <input.mid>",
	Short: "Convert MIDI to pattern text",
	Args:  cobra.ExactArgs(1),
	RunE:  runMIDIToText,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <pattern>",
	Short: "Print the grid a pattern string decodes to",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var euclidCmd = &cobra.Command{
	Use:   "euclid <hits> <steps>",
	Short: "Print a Euclidean rhythm as a pattern string",
	Args:  cobra.ExactArgs(2),
	RunE:  runEuclid,
}

func init() {
	// Convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	// text2midi command
	text2midiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")

	// midi2text command
	midi2textCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .pat file path")

	// decode command
	decodeCmd.Flags().Float64Var(&loopBeats, "loop-beats", 0, "Loop length in beats used to derive beats per bar")
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	conv := converter.New(cfg.ConverterOptions())

	cmd.Printf("Converting %s -> %s\n", input, outputFile)
	if err := conv.ConvertFile(input, outputFile); err != nil {
		return err
	}
	cmd.Println("Conversion complete!")
	return nil
}

func runTextToMIDI(cmd *cobra.Command, args []string) error {
	return convertWith(cmd, args[0], ".mid", converter.New(cfg.ConverterOptions()).TextToMIDI)
}

func runMIDIToText(cmd *cobra.Command, args []string) error {
	return convertWith(cmd, args[0], ".pat", converter.New(cfg.ConverterOptions()).MIDIToText)
}

func convertWith(cmd *cobra.Command, input, ext string, fn func([]byte) ([]byte, error)) error {
	output := getOutputPath(input, ext)

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	result, err := fn(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}

	cmd.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	g, err := converter.DecodeLoop(args[0], loopBeats)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	cmd.Printf("loop %g beats, %d hits, normalized %s\n", g.LoopBeats(), g.Hits(), converter.Encode(g))
	return nil
}

func runEuclid(cmd *cobra.Command, args []string) error {
	hits, err := strconv.Atoi(args[0])
	if err != nil || hits < 0 {
		return fmt.Errorf("hits must be a non-negative integer")
	}
	steps, err := strconv.Atoi(args[1])
	if err != nil || steps <= 0 {
		return fmt.Errorf("steps must be a positive integer")
	}
	g := grid.NewEmpty(grid.Config{StepsPerBar: steps, NumBars: 1, BeatsPerBar: cfg.Grid.BeatsPerBar})
	g.ApplyEuclidean(hits)
	cmd.Println(converter.Encode(g))
	return nil
}
