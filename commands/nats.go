package commands

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semdraft/archive"
	"github.com/c360studio/semdraft/llm"
)

// connectNATS connects to the configured NATS server. Returns nil when no
// URL is configured; connection failures are logged and degrade to nil
// because everything in semdraft works without a broker.
func (a *App) connectNATS() *nats.Conn {
	if a.cfg.NATS.URL == "" {
		return nil
	}
	nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name("semdraft"))
	if err != nil {
		a.logger.Warn("NATS unavailable, archive and event bridge disabled",
			"url", a.cfg.NATS.URL, "error", err)
		return nil
	}
	a.logger.Debug("Connected to NATS", "url", a.cfg.NATS.URL)
	return nc
}

// openArchive creates the run archive over an established connection and
// wires the global call store to it. Returns nil on any failure; archiving
// is best-effort.
func (a *App) openArchive(ctx context.Context, nc *nats.Conn) *archive.Store {
	if nc == nil {
		return nil
	}
	js, err := jetstream.New(nc)
	if err != nil {
		a.logger.Warn("JetStream unavailable, archive disabled", "error", err)
		return nil
	}
	store, err := archive.NewStore(ctx, js)
	if err != nil {
		a.logger.Warn("Archive buckets unavailable, archive disabled", "error", err)
		return nil
	}
	llm.InitGlobalCallStore(store, llm.WithCallStoreLogger(a.logger))
	return store
}
