package resolver

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/bluesky/docrelay/internal/runtime/config"
	"github.com/bluesky/docrelay/internal/runtime/logging"
)

// Swappable for tests.
var (
	dialObjectStore = DialObjectStore
	newAzureBlob    = NewAzureBlob
)

// Discover builds the registry for a deployment. JSONL is always available;
// NATS_OBJECT and AZURE_BLOB are added when their settings are present. The
// returned func releases any connections the resolvers hold.
func Discover(cfg config.ResolverConfig, logger logging.ServiceLogger) (*Registry, func(), error) {
	reg := NewRegistry()
	reg.Register(SpecJSONL, NewJSONL())

	var conns []*nats.Conn
	closeAll := func() {
		for _, nc := range conns {
			nc.Close()
		}
	}

	if cfg.NATSURL != "" {
		store, nc, err := dialObjectStore(cfg.NATSURL)
		if err != nil {
			return nil, nil, fmt.Errorf("resolver %s: %w", SpecNATSObject, err)
		}
		if nc != nil {
			conns = append(conns, nc)
		}
		reg.Register(SpecNATSObject, store)
	}

	if cfg.AzureConnectionString != "" {
		blob, err := newAzureBlob(cfg.AzureConnectionString, cfg.AzureContainer)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("resolver %s: %w", SpecAzureBlob, err)
		}
		reg.Register(SpecAzureBlob, blob)
	}

	if logger != nil {
		logger.Info("External data resolvers ready", logging.LogFields{"specs": reg.Specs()})
	}
	return reg, closeAll, nil
}
