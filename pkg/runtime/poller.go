package runtime

import (
	"context"
	"log/slog"
	"time"
)

// Poller fetches snapshots on an interval for runtimes that do not push
type Poller struct {
	client   *Client
	interval time.Duration
	onState  func(*Snapshot)
	log      *slog.Logger
}

// NewPoller creates a poller that hands each snapshot to onState
func NewPoller(client *Client, interval time.Duration, onState func(*Snapshot), log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{client: client, interval: interval, onState: onState, log: log}
}

// Run polls until ctx is cancelled. Fetch failures are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	snap, err := p.client.State(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("runtime poll failed", "error", err)
		}
		return
	}
	p.onState(snap)
}
