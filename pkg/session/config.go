package session

import (
	"log/slog"

	"github.com/james-see/patternsync/pkg/config"
	"github.com/james-see/patternsync/pkg/runtime"
	"github.com/james-see/patternsync/pkg/source"
)

// FromConfig builds a session against the configured runtime and source
// tree. The returned client is the session's runtime, for polling.
func FromConfig(cfg *config.Config, log *slog.Logger) (*Session, *runtime.Client) {
	client := runtime.NewClient(cfg.Runtime.URL, cfg.Runtime.Timeout)
	sess := New(Options{
		Runtime:  client,
		Source:   source.NewBuffers(source.NewFileStore(cfg.Source.Root)),
		Locator:  cfg.Locator(),
		Debounce: cfg.Sync.Debounce,
		Logger:   log,
		Geometry: cfg.GridDefaults(),
	})
	return sess, client
}
