// Package main is the entry point for the patternsync CLI
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/james-see/patternsync/pkg/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile string
	outputFile string
	cfg        *config.Config
)

// v holds defaults, env and bound flags until loadConfig decodes it into cfg
var v = config.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "patternsync",
	Short: "Keep live-coded patterns, a step grid and the arrangement timeline in sync",
	Long: `patternsync edits the step patterns of a running live-coding engine as a
grid, pushes edits to the engine immediately and writes them back into the
source file that defines them when asked.

Examples:
  patternsync serve --port 8080
  patternsync tui --runtime-url http://localhost:8765
  patternsync decode "x...|x..X"
  patternsync euclid 3 8
  patternsync text2midi kick.pat -o kick.mid
  patternsync timeline`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default ./patternsync.yaml or ~/.config/patternsync/patternsync.yaml)")
	flags.String("runtime-url", "", "Runtime engine base URL")
	flags.String("source-root", "", "Directory source locations are relative to")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	_ = v.BindPFlag("runtime.url", flags.Lookup("runtime-url"))
	_ = v.BindPFlag("source.root", flags.Lookup("source-root"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(text2midiCmd)
	rootCmd.AddCommand(midi2textCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(euclidCmd)
	rootCmd.AddCommand(timelineCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = c
	slog.SetDefault(cfg.Log.Logger(os.Stderr))
	return nil
}
