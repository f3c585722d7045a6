package main

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/james-see/patternsync/pkg/config"
	"github.com/james-see/patternsync/pkg/session"
	"github.com/james-see/patternsync/pkg/tui"
)

// tuiPollInterval applies when no poll interval is configured; the terminal
// view has no push endpoint of its own.
const tuiPollInterval = 500 * time.Millisecond

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	logPath := "patternsync.log"
	if dir, err := config.ConfigDir(); err == nil {
		logPath = filepath.Join(dir, "patternsync.log")
	}
	f, err := tea.LogToFile(logPath, "patternsync")
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	log := cfg.Log.Logger(f)

	if cfg.Runtime.PollInterval <= 0 {
		cfg.Runtime.PollInterval = tuiPollInterval
	}
	sess, client := session.FromConfig(cfg, log)
	startPoller(cmd.Context(), sess, client, log)

	return tui.Run(sess, cfg.ConverterOptions())
}
