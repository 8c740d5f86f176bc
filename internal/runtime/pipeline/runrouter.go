package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/bluesky/docrelay/internal/runtime/catalog"
	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	idspkg "github.com/bluesky/docrelay/internal/runtime/ids"
	loggingpkg "github.com/bluesky/docrelay/internal/runtime/logging"
	"github.com/bluesky/docrelay/internal/runtime/resolver"
)

// Factory builds the stages for a new run from its start document.
type Factory func(ctx context.Context, start document.Document) ([]Stage, error)

// FactoryOptions configures DefaultFactory.
type FactoryOptions struct {
	Resolvers *resolver.Registry
	// Catalog enables splicing when set.
	Catalog catalog.Catalog
	Roles   []string
	NewUID  idspkg.Generator
	Logger  loggingpkg.ServiceLogger
}

// DefaultFactory builds Accumulator -> Filler, with a Splicer in front when a
// catalog is configured.
func DefaultFactory(opts FactoryOptions) Factory {
	return func(_ context.Context, _ document.Document) ([]Stage, error) {
		stages := make([]Stage, 0, 3)
		if opts.Catalog != nil {
			splicer, err := NewSplicer(SplicerConfig{
				Catalog:   opts.Catalog,
				Roles:     opts.Roles,
				Resolvers: opts.Resolvers,
				NewUID:    opts.NewUID,
				Logger:    opts.Logger,
			})
			if err != nil {
				return nil, err
			}
			stages = append(stages, splicer)
		}
		return append(stages, NewAccumulator(), NewFiller(opts.Resolvers)), nil
	}
}

// RunRouter owns one pipeline per open run. A pipeline is created on start
// and retired after its stop has been processed; documents are routed to it
// by run uid or through the descriptor and resource ids the run declared.
// A resource that names no run is delivered to every open run, and its
// datums follow it to each of them.
// RunRouter is not safe for concurrent use.
type RunRouter struct {
	factory Factory
	sink    Emitter
	logger  loggingpkg.ServiceLogger

	runs         map[string]*Pipeline
	order        []string
	byDescriptor map[string]string
	byResource   map[string][]string
}

func NewRunRouter(factory Factory, sink Emitter, logger loggingpkg.ServiceLogger) (*RunRouter, error) {
	if factory == nil {
		return nil, errspkg.ErrFactoryRequired
	}
	if sink == nil {
		return nil, errspkg.ErrSinkRequired
	}
	if logger == nil {
		logger = loggingpkg.Discard
	}
	return &RunRouter{
		factory:      factory,
		sink:         sink,
		logger:       logger,
		runs:         make(map[string]*Pipeline),
		byDescriptor: make(map[string]string),
		byResource:   make(map[string][]string),
	}, nil
}

// Dispatch routes p to its run's pipeline, opening one on start.
func (r *RunRouter) Dispatch(ctx context.Context, p document.Pair) error {
	switch p.Name {
	case document.KindStart:
		return r.open(ctx, p)
	case document.KindStop:
		runUID, err := p.Doc.Require(document.FieldRunStart)
		if err != nil {
			return fmt.Errorf("stop: %w", err)
		}
		pl, err := r.pipeline(runUID, p)
		if err != nil {
			return err
		}
		if err := pl.Process(ctx, p); err != nil {
			return err
		}
		r.retire(runUID)
		return nil
	}

	runUIDs, err := r.route(p)
	if err != nil {
		return err
	}
	for _, runUID := range runUIDs {
		pl, err := r.pipeline(runUID, p)
		if err != nil {
			return err
		}
		if err := pl.Process(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// open builds the run's pipeline and registers it once the start document
// has gone through, so a failed start leaves nothing behind.
func (r *RunRouter) open(ctx context.Context, p document.Pair) error {
	runUID, err := p.Doc.Require(document.FieldUID)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if _, ok := r.runs[runUID]; ok {
		return fmt.Errorf("%w: %q", errspkg.ErrDuplicateRun, runUID)
	}
	stages, err := r.factory(ctx, p.Doc)
	if err != nil {
		return fmt.Errorf("run %q: %w", runUID, err)
	}
	pl, err := NewPipeline(r.sink, stages...)
	if err != nil {
		return err
	}
	if err := pl.Process(ctx, p); err != nil {
		return fmt.Errorf("run %q: %w", runUID, err)
	}
	r.runs[runUID] = pl
	r.order = append(r.order, runUID)
	r.logger.Debug("Opened run pipeline", loggingpkg.LogFields{
		"run_uid":   runUID,
		"open_runs": len(r.runs),
	})
	return nil
}

// route finds the runs a non-start, non-stop document belongs to and records
// any id it declares.
func (r *RunRouter) route(p document.Pair) ([]string, error) {
	doc := p.Doc
	switch p.Name {
	case document.KindDescriptor:
		runUID, err := doc.Require(document.FieldRunStart)
		if err != nil {
			return nil, fmt.Errorf("descriptor: %w", err)
		}
		if uid := doc.UID(); uid != "" && r.runs[runUID] != nil {
			r.byDescriptor[uid] = runUID
		}
		return []string{runUID}, nil

	case document.KindResource:
		runUIDs := r.resourceRuns(doc)
		if len(runUIDs) == 0 {
			return nil, fmt.Errorf("%w: resource %q has no run_start and no run is open",
				errspkg.ErrNoActivePipeline, doc.UID())
		}
		if uid := doc.UID(); uid != "" {
			for _, runUID := range runUIDs {
				if r.runs[runUID] != nil && !slices.Contains(r.byResource[uid], runUID) {
					r.byResource[uid] = append(r.byResource[uid], runUID)
				}
			}
		}
		return runUIDs, nil

	case document.KindDatum, document.KindDatumPage:
		ref := doc.String(document.FieldResource)
		runUIDs := r.byResource[ref]
		if len(runUIDs) == 0 {
			return nil, fmt.Errorf("%w: %s references unknown id %q", errspkg.ErrNoActivePipeline, p.Name, ref)
		}
		return slices.Clone(runUIDs), nil

	case document.KindEvent, document.KindEventPage:
		ref := doc.String(document.FieldDescriptor)
		runUID, ok := r.byDescriptor[ref]
		if !ok {
			return nil, fmt.Errorf("%w: %s references unknown id %q", errspkg.ErrNoActivePipeline, p.Name, ref)
		}
		return []string{runUID}, nil
	}
	return nil, fmt.Errorf("%w: %q", errspkg.ErrUnrecognizedDocumentKind, p.Name)
}

// resourceRuns is the run named by run_start, or every open run in opening
// order when the resource names none.
func (r *RunRouter) resourceRuns(doc document.Document) []string {
	if runUID := doc.String(document.FieldRunStart); runUID != "" {
		return []string{runUID}
	}
	return slices.Clone(r.order)
}

func (r *RunRouter) pipeline(runUID string, p document.Pair) (*Pipeline, error) {
	pl, ok := r.runs[runUID]
	if !ok {
		return nil, fmt.Errorf("%w: %s for run %q", errspkg.ErrNoActivePipeline, p.Name, runUID)
	}
	return pl, nil
}

func (r *RunRouter) retire(runUID string) {
	delete(r.runs, runUID)
	r.order = slices.DeleteFunc(r.order, func(uid string) bool { return uid == runUID })
	maps.DeleteFunc(r.byDescriptor, func(_, v string) bool { return v == runUID })
	for res, owners := range r.byResource {
		owners = slices.DeleteFunc(owners, func(uid string) bool { return uid == runUID })
		if len(owners) == 0 {
			delete(r.byResource, res)
			continue
		}
		r.byResource[res] = owners
	}
	r.logger.Info("Run complete", loggingpkg.LogFields{
		"run_uid":   runUID,
		"open_runs": len(r.runs),
	})
}

// RunOf reports which open run p belongs to without recording any id. It
// returns "" when the run cannot be determined or p is shared by several
// runs.
func (r *RunRouter) RunOf(p document.Pair) string {
	doc := p.Doc
	switch p.Name {
	case document.KindStart:
		return doc.UID()
	case document.KindStop, document.KindDescriptor:
		return doc.String(document.FieldRunStart)
	case document.KindResource:
		return single(r.resourceRuns(doc))
	case document.KindDatum, document.KindDatumPage:
		return single(r.byResource[doc.String(document.FieldResource)])
	case document.KindEvent, document.KindEventPage:
		return r.byDescriptor[doc.String(document.FieldDescriptor)]
	}
	return ""
}

func single(runUIDs []string) string {
	if len(runUIDs) == 1 {
		return runUIDs[0]
	}
	return ""
}

// OpenRuns reports how many runs have a live pipeline.
func (r *RunRouter) OpenRuns() int { return len(r.runs) }

// Buffered reports how many pairs are held across all open runs.
func (r *RunRouter) Buffered() int {
	n := 0
	for _, pl := range r.runs {
		n += pl.Buffered()
	}
	return n
}
