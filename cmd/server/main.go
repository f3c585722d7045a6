// Package main is the entry point for the patternsync API server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/james-see/patternsync/pkg/api"
	"github.com/james-see/patternsync/pkg/config"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/session"
)

func main() {
	configFile := flag.String("config", "", "Config file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(config.New(), *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	log := cfg.Log.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, client := session.FromConfig(cfg, log)
	if cfg.Runtime.PollInterval > 0 {
		go runtime.NewPoller(client, cfg.Runtime.PollInterval, func(snap *runtime.Snapshot) {
			sess.IngestState(snap)
		}, log).Run(ctx)
	}

	fmt.Printf("Starting patternsync API server on port %d...\n", cfg.Server.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)

	if err := api.NewServer(sess, cfg.ConverterOptions(), log).Start(ctx, cfg.Server.Port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
