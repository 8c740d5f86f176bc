package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	jsoncodec "github.com/bluesky/docrelay/internal/runtime/jsoncodec"
)

// keyValue is the slice of jetstream.KeyValue the catalog uses.
type keyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// KV is a catalog stored in a JetStream key/value bucket. Each key holds a
// JSON array of {"name": ..., "doc": ...} envelopes.
type KV struct {
	kv keyValue
}

func NewKV(kv jetstream.KeyValue) *KV {
	return &KV{kv: kv}
}

// DialKV connects to NATS at url and opens the named bucket, creating it if
// it does not exist. The caller closes the returned connection.
func DialKV(ctx context.Context, url, bucket string) (*KV, *nats.Conn, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to open key/value bucket %s: %w", bucket, err)
	}
	return NewKV(kv), nc, nil
}

func (k *KV) Lookup(ctx context.Context, id string) (Run, error) {
	entry, err := k.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: run %q: %w", errspkg.ErrCatalogLookup, id, err)
	}

	var envelopes []document.Envelope
	if err := jsoncodec.Unmarshal(entry.Value(), &envelopes); err != nil {
		return nil, fmt.Errorf("%w: run %q: %w", errspkg.ErrCatalogLookup, id, err)
	}
	pairs := make([]document.Pair, 0, len(envelopes))
	for i, env := range envelopes {
		kind, err := document.ParseKind(env.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: run %q entry %d: %w", errspkg.ErrCatalogLookup, id, i, err)
		}
		pairs = append(pairs, document.Pair{Name: kind, Doc: env.Doc})
	}
	return &sliceRun{id: id, pairs: pairs}, nil
}

// Store records a run under id, replacing any previous value.
func (k *KV) Store(ctx context.Context, id string, pairs []document.Pair) error {
	envelopes := make([]document.Envelope, len(pairs))
	for i, p := range pairs {
		envelopes[i] = document.Envelope{Name: p.Name.String(), Doc: p.Doc}
	}
	data, err := jsoncodec.Marshal(envelopes)
	if err != nil {
		return fmt.Errorf("encode run %q: %w", id, err)
	}
	if _, err := k.kv.Put(ctx, id, data); err != nil {
		return fmt.Errorf("store run %q: %w", id, err)
	}
	return nil
}
