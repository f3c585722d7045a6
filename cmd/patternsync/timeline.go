package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/timeline"
)

var timelineJSON bool

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Fetch runtime state and print the composed arrangement timeline",
	Args:  cobra.NoArgs,
	RunE:  runTimeline,
}

func init() {
	timelineCmd.Flags().BoolVar(&timelineJSON, "json", false, "Print the timeline as JSON")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	client := runtime.NewClient(cfg.Runtime.URL, cfg.Runtime.Timeout)
	snap, err := client.State(cmd.Context())
	if err != nil {
		return err
	}

	tl, err := timeline.Compose(snap)
	if err != nil && !apperr.Is(err, apperr.Cycle) {
		return err
	}

	if timelineJSON {
		out, err := json.MarshalIndent(tl, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("mode %s, loop %g beats\n", tl.Mode, tl.MaxLoopBeats)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRACK\tCLIP\tTYPE\tSTART\tEND")
	for _, track := range tl.Tracks {
		if track.Error != "" {
			fmt.Fprintf(w, "%s\t-\terror\t%s\t\n", track.Name, track.Error)
			continue
		}
		for _, c := range track.Clips {
			fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\n", track.Name, c.Name, c.Type, c.StartBeat, c.EndBeat)
		}
	}
	return w.Flush()
}
