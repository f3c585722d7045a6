package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/james-see/patternsync/pkg/api"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Starts the HTTP API. The runtime pushes snapshots to /api/v1/runtime/state,
or set --poll to fetch them from the runtime on an interval.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Server port")
	serveCmd.Flags().Duration("poll", 0, "Runtime poll interval (0 waits for pushes)")
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("runtime.poll_interval", serveCmd.Flags().Lookup("poll"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.Default()
	sess, client := session.FromConfig(cfg, log)
	startPoller(ctx, sess, client, log)

	cmd.Printf("Starting API server on port %d...\n", cfg.Server.Port)
	cmd.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)
	return api.NewServer(sess, cfg.ConverterOptions(), log).Start(ctx, cfg.Server.Port)
}

// startPoller feeds runtime snapshots into sess when polling is configured
func startPoller(ctx context.Context, sess *session.Session, client *runtime.Client, log *slog.Logger) {
	if cfg.Runtime.PollInterval <= 0 {
		return
	}
	p := runtime.NewPoller(client, cfg.Runtime.PollInterval, func(snap *runtime.Snapshot) {
		sess.IngestState(snap)
	}, log)
	go p.Run(ctx)
	log.Info("polling runtime", "url", cfg.Runtime.URL, "interval", cfg.Runtime.PollInterval)
}
