// Package catalog gives read access to completed runs so auxiliary
// calibration runs can be spliced into a live primary run.
package catalog

import (
	"context"
	"fmt"
	"iter"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

// Catalog looks up a previously recorded run by identifier. Backends accept
// whatever identifier they index on (start uid, scan id or storage key).
type Catalog interface {
	Lookup(ctx context.Context, id string) (Run, error)
}

// Run is one recorded run.
type Run interface {
	ID() string
	// PrimaryDescriptors returns the run's descriptors on the primary stream.
	PrimaryDescriptors() []document.Document
	// Documents yields the run's pairs in recorded order. Iteration may read
	// from the backend lazily.
	Documents(ctx context.Context) iter.Seq2[document.Pair, error]
}

func notFound(id string) error {
	return fmt.Errorf("%w: run %q not found", errspkg.ErrCatalogLookup, id)
}

func primaryDescriptors(pairs []document.Pair) []document.Document {
	var out []document.Document
	for _, p := range pairs {
		if isPrimaryDescriptor(p) {
			out = append(out, p.Doc)
		}
	}
	return out
}

func isPrimaryDescriptor(p document.Pair) bool {
	return p.Name == document.KindDescriptor && p.Doc.String(document.FieldName) == document.PrimaryStream
}

// sliceRun serves a run that is fully held in memory.
type sliceRun struct {
	id    string
	pairs []document.Pair
}

func (r *sliceRun) ID() string { return r.id }

func (r *sliceRun) PrimaryDescriptors() []document.Document { return primaryDescriptors(r.pairs) }

func (r *sliceRun) Documents(ctx context.Context) iter.Seq2[document.Pair, error] {
	return func(yield func(document.Pair, error) bool) {
		for _, p := range r.pairs {
			if err := ctx.Err(); err != nil {
				yield(document.Pair{}, err)
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}
