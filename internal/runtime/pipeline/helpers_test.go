package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/bluesky/docrelay/internal/runtime/document"
	"github.com/bluesky/docrelay/internal/runtime/resolver"
)

type recorder struct {
	pairs []document.Pair
	err   error
	// failAt makes the n-th emit (1-based) return err.
	failAt int
}

func (r *recorder) emit(_ context.Context, p document.Pair) error {
	if r.failAt > 0 && len(r.pairs)+1 == r.failAt {
		return r.err
	}
	r.pairs = append(r.pairs, p)
	return nil
}

func (r *recorder) kinds() []document.Kind {
	out := make([]document.Kind, len(r.pairs))
	for i, p := range r.pairs {
		out[i] = p.Name
	}
	return out
}

// fakeRegistry resolves spec FAKE to "<root>/<resource_path>#<frame>" and
// counts calls.
func fakeRegistry(calls *int) *resolver.Registry {
	reg := resolver.NewRegistry()
	reg.Register("FAKE", resolver.ResolverFunc(func(_ context.Context, res resolver.Resource, params map[string]any) (any, error) {
		if calls != nil {
			*calls++
		}
		return fmt.Sprintf("%s/%s#%v", res.Root, res.ResourcePath, params["frame"]), nil
	}))
	return reg
}

func pair(kind document.Kind, doc document.Document) document.Pair {
	return document.Pair{Name: kind, Doc: doc}
}

// scenarioRun is a run whose single event references external data.
func scenarioRun(runUID string) []document.Pair {
	desc := runUID + "-d1"
	res := runUID + "-res1"
	dat := runUID + "-dat1"
	return []document.Pair{
		pair(document.KindStart, document.Document{"uid": runUID, "scan_id": float64(1)}),
		pair(document.KindDescriptor, document.Document{
			"uid": desc, "run_start": runUID, "name": "primary",
			"data_keys": map[string]any{
				"x":     map[string]any{"dtype": "array", "external": "FILESTORE:"},
				"motor": map[string]any{"dtype": "number"},
			},
		}),
		pair(document.KindResource, document.Document{
			"uid": res, "run_start": runUID, "spec": "FAKE", "root": "/data", "resource_path": runUID + ".h5",
			"resource_kwargs": map[string]any{"frame": 0},
		}),
		pair(document.KindDatum, document.Document{
			"datum_id": dat, "resource": res, "datum_kwargs": map[string]any{"frame": 3},
		}),
		pair(document.KindEvent, document.Document{
			"uid": runUID + "-ev1", "descriptor": desc, "seq_num": float64(1),
			"data":   map[string]any{"x": dat, "motor": 0.5},
			"filled": map[string]any{"x": false},
		}),
		pair(document.KindStop, document.Document{"uid": runUID + "-stop", "run_start": runUID}),
	}
}

func sequentialUIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func mustPipeline(t *testing.T, sink Emitter, stages ...Stage) *Pipeline {
	t.Helper()
	pl, err := NewPipeline(sink, stages...)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return pl
}
