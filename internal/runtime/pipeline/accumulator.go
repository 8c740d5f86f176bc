package pipeline

import (
	"context"
	"fmt"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

// Accumulator holds every pair of a run, start and stop included, and
// releases them in arrival order once the stop document arrives. The buffer
// is unbounded: a run that never stops stays in memory.
type Accumulator struct {
	buf []document.Pair
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Process(ctx context.Context, p document.Pair, emit Emitter) error {
	if !p.Name.Valid() {
		return fmt.Errorf("%w: %q", errspkg.ErrUnrecognizedDocumentKind, p.Name)
	}
	a.buf = append(a.buf, p)
	if p.Name != document.KindStop {
		return nil
	}
	return a.drain(ctx, emit)
}

// drain emits buffered pairs FIFO. On an emit error the unsent pairs stay
// buffered.
func (a *Accumulator) drain(ctx context.Context, emit Emitter) error {
	for len(a.buf) > 0 {
		p := a.buf[0]
		if err := emit(ctx, p); err != nil {
			return err
		}
		a.buf[0] = document.Pair{}
		a.buf = a.buf[1:]
	}
	a.buf = nil
	return nil
}

// Len reports how many pairs are buffered.
func (a *Accumulator) Len() int { return len(a.buf) }
