package runtime

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	configpkg "github.com/bluesky/docrelay/internal/runtime/config"
	"github.com/bluesky/docrelay/internal/runtime/document"
	loggingpkg "github.com/bluesky/docrelay/internal/runtime/logging"
	metadatapkg "github.com/bluesky/docrelay/internal/runtime/metadata"
	"github.com/bluesky/docrelay/internal/runtime/pipeline"
	"github.com/bluesky/docrelay/internal/runtime/resolver"
)

// syncBuffer lets a text logger be read while the router still writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(t *testing.T) (loggingpkg.ServiceLogger, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	log, err := loggingpkg.NewTextServiceLogger(buf, "debug")
	require.NoError(t, err)
	return log, buf
}

// fakeRegistry resolves spec FAKE to "<root>/<resource_path>#<frame>".
func fakeRegistry() *resolver.Registry {
	reg := resolver.NewRegistry()
	reg.Register("FAKE", resolver.ResolverFunc(func(_ context.Context, res resolver.Resource, params map[string]any) (any, error) {
		return fmt.Sprintf("%s/%s#%v", res.Root, res.ResourcePath, params["frame"]), nil
	}))
	return reg
}

func testFactory(opts pipeline.FactoryOptions) pipeline.Factory {
	if opts.Resolvers == nil {
		opts.Resolvers = fakeRegistry()
	}
	return pipeline.DefaultFactory(opts)
}

// scenarioRun is a run whose single event references external data. The
// filled value of x is "/data/<runUID>.h5#3".
func scenarioRun(runUID string) []document.Pair {
	desc := runUID + "-d1"
	res := runUID + "-res1"
	dat := runUID + "-dat1"
	return []document.Pair{
		{Name: document.KindStart, Doc: document.Document{"uid": runUID, "scan_id": float64(1)}},
		{Name: document.KindDescriptor, Doc: document.Document{
			"uid": desc, "run_start": runUID, "name": "primary",
			"data_keys": map[string]any{
				"x": map[string]any{"dtype": "array", "external": "FILESTORE:"},
			},
		}},
		{Name: document.KindResource, Doc: document.Document{
			"uid": res, "run_start": runUID, "spec": "FAKE", "root": "/data", "resource_path": runUID + ".h5",
			"resource_kwargs": map[string]any{"frame": 0},
		}},
		{Name: document.KindDatum, Doc: document.Document{
			"datum_id": dat, "resource": res, "datum_kwargs": map[string]any{"frame": 3},
		}},
		{Name: document.KindEvent, Doc: document.Document{
			"uid": runUID + "-ev1", "descriptor": desc, "seq_num": float64(1),
			"data":   map[string]any{"x": dat},
			"filled": map[string]any{"x": false},
		}},
		{Name: document.KindStop, Doc: document.Document{"uid": runUID + "-stop", "run_start": runUID}},
	}
}

func encodePair(t *testing.T, p document.Pair) *message.Message {
	t.Helper()
	msg, err := document.Encode(p, metadatapkg.Metadata{metadatapkg.KeyCorrelationID: "corr-" + p.Doc.UID()})
	require.NoError(t, err)
	return msg
}

func decodeAll(t *testing.T, msgs []*message.Message) []document.Pair {
	t.Helper()
	out := make([]document.Pair, len(msgs))
	for i, msg := range msgs {
		p, err := document.Decode(msg)
		require.NoError(t, err)
		out[i] = p
	}
	return out
}

func kinds(pairs []document.Pair) []document.Kind {
	out := make([]document.Kind, len(pairs))
	for i, p := range pairs {
		out[i] = p.Name
	}
	return out
}

func channelConfig(t *testing.T, inTopic, outTopic string) *configpkg.Config {
	t.Helper()
	cfg := configpkg.Default()
	require.NoError(t, cfg.SetEndpoints("channel://"+inTopic, "channel://"+outTopic))
	return cfg
}
