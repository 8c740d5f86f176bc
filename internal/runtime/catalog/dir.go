package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	jsoncodec "github.com/bluesky/docrelay/internal/runtime/jsoncodec"
)

// errStopIteration ends a line scan early without reporting a failure.
var errStopIteration = errors.New("stop iteration")

// Dir is a catalog backed by a directory holding one "<id>.jsonl" file per
// run. Each line is a {"name": ..., "doc": ...} envelope.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Lookup(_ context.Context, id string) (Run, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("%w: invalid run id %q", errspkg.ErrCatalogLookup, id)
	}
	path := filepath.Join(d.root, id+".jsonl")

	run := &fileRun{id: id, path: path}
	err := run.scan(func(p document.Pair) error {
		if isPrimaryDescriptor(p) {
			run.descriptors = append(run.descriptors, p.Doc)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: run %q: %w", errspkg.ErrCatalogLookup, id, err)
	}
	return run, nil
}

type fileRun struct {
	id          string
	path        string
	descriptors []document.Document
}

func (r *fileRun) ID() string { return r.id }

func (r *fileRun) PrimaryDescriptors() []document.Document { return r.descriptors }

func (r *fileRun) Documents(ctx context.Context) iter.Seq2[document.Pair, error] {
	return func(yield func(document.Pair, error) bool) {
		err := r.scan(func(p document.Pair) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !yield(p, nil) {
				return errStopIteration
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			yield(document.Pair{}, fmt.Errorf("%w: run %q: %w", errspkg.ErrCatalogLookup, r.id, err))
		}
	}
}

func (r *fileRun) scan(fn func(document.Pair) error) error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	line := 0
	return jsoncodec.ForEachLine(f, func(data []byte) error {
		line++
		p, err := document.DecodeEnvelope(data)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", filepath.Base(r.path), line, err)
		}
		return fn(p)
	})
}

// WriteDir stores a run as "<id>.jsonl" under root.
func WriteDir(root, id string, pairs []document.Pair) error {
	var buf strings.Builder
	for _, p := range pairs {
		data, err := document.EncodeEnvelope(p)
		if err != nil {
			return fmt.Errorf("encode %s: %w", p.Name, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(root, id+".jsonl"), []byte(buf.String()), 0o644)
}
