package pipeline

import (
	"context"
	"fmt"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

// HandlerFunc transforms one document of a known kind.
type HandlerFunc func(ctx context.Context, doc document.Document) (document.Document, error)

// Router dispatches a pair to the handler registered for its kind. A nil
// handler passes the document through unchanged. Router holds no state of its
// own.
type Router struct {
	Start      HandlerFunc
	Descriptor HandlerFunc
	Resource   HandlerFunc
	Datum      HandlerFunc
	DatumPage  HandlerFunc
	Event      HandlerFunc
	EventPage  HandlerFunc
	Stop       HandlerFunc
}

// Dispatch runs the handler for p's kind and returns the resulting pair.
func (r *Router) Dispatch(ctx context.Context, p document.Pair) (document.Pair, error) {
	var h HandlerFunc
	switch p.Name {
	case document.KindStart:
		h = r.Start
	case document.KindDescriptor:
		h = r.Descriptor
	case document.KindResource:
		h = r.Resource
	case document.KindDatum:
		h = r.Datum
	case document.KindDatumPage:
		h = r.DatumPage
	case document.KindEvent:
		h = r.Event
	case document.KindEventPage:
		h = r.EventPage
	case document.KindStop:
		h = r.Stop
	default:
		return document.Pair{}, fmt.Errorf("%w: %q", errspkg.ErrUnrecognizedDocumentKind, p.Name)
	}
	if h == nil {
		return p, nil
	}
	doc, err := h(ctx, p.Doc)
	if err != nil {
		return document.Pair{}, err
	}
	return document.Pair{Name: p.Name, Doc: doc}, nil
}

// Process makes a Router usable as a Stage: dispatch, then emit the result.
func (r *Router) Process(ctx context.Context, p document.Pair, emit Emitter) error {
	out, err := r.Dispatch(ctx, p)
	if err != nil {
		return err
	}
	return emit(ctx, out)
}
