// Package pipeline holds the per-run document processing chain: the kind
// router every stage builds on, the run accumulator, the reference filler,
// the auxiliary-run splicer and the run router that owns one chain per open
// run.
package pipeline

import (
	"context"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

// Emitter pushes a pair to the next stage or to the final sink.
type Emitter func(ctx context.Context, p document.Pair) error

// Stage consumes one pair and emits zero or more pairs downstream. Errors are
// returned to the caller unchanged; a stage never emits a partial result for a
// pair it failed on.
type Stage interface {
	Process(ctx context.Context, p document.Pair, emit Emitter) error
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ctx context.Context, p document.Pair, emit Emitter) error

func (f StageFunc) Process(ctx context.Context, p document.Pair, emit Emitter) error {
	return f(ctx, p, emit)
}

// Pipeline is an ordered list of stages. Stage i emits into stage i+1 and the
// last stage emits into the sink.
type Pipeline struct {
	stages []Stage
	head   Emitter
}

// NewPipeline chains stages in order in front of sink.
func NewPipeline(sink Emitter, stages ...Stage) (*Pipeline, error) {
	if sink == nil {
		return nil, errspkg.ErrSinkRequired
	}
	next := sink
	for i := len(stages) - 1; i >= 0; i-- {
		stage, downstream := stages[i], next
		next = func(ctx context.Context, p document.Pair) error {
			return stage.Process(ctx, p, downstream)
		}
	}
	return &Pipeline{stages: stages, head: next}, nil
}

// Process feeds p into the first stage.
func (p *Pipeline) Process(ctx context.Context, pair document.Pair) error {
	return p.head(ctx, pair)
}

// Buffered sums the pairs held by stages that buffer.
func (p *Pipeline) Buffered() int {
	n := 0
	for _, s := range p.stages {
		if b, ok := s.(interface{ Len() int }); ok {
			n += b.Len()
		}
	}
	return n
}
