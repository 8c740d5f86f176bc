package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

func TestRouterDispatchesByKind(t *testing.T) {
	var seen []string
	tag := func(name string) HandlerFunc {
		return func(_ context.Context, doc document.Document) (document.Document, error) {
			seen = append(seen, name)
			out := doc.Clone()
			out["handled_by"] = name
			return out, nil
		}
	}
	r := &Router{
		Start: tag("start"), Descriptor: tag("descriptor"), Resource: tag("resource"),
		Datum: tag("datum"), DatumPage: tag("datum_page"), Event: tag("event"),
		EventPage: tag("event_page"), Stop: tag("stop"),
	}

	for _, kind := range document.Kinds {
		out, err := r.Dispatch(context.Background(), pair(kind, document.Document{}))
		require.NoError(t, err)
		assert.Equal(t, kind, out.Name)
		assert.Equal(t, kind.String(), out.Doc["handled_by"])
	}
	assert.Len(t, seen, len(document.Kinds))
}

func TestRouterNilHandlerPassesThrough(t *testing.T) {
	doc := document.Document{"uid": "e1"}
	out, err := (&Router{}).Dispatch(context.Background(), pair(document.KindEvent, doc))
	require.NoError(t, err)
	assert.Equal(t, pair(document.KindEvent, doc), out)
}

func TestRouterRejectsUnknownKind(t *testing.T) {
	_, err := (&Router{}).Dispatch(context.Background(), pair("bulk_events", document.Document{}))
	assert.ErrorIs(t, err, errspkg.ErrUnrecognizedDocumentKind)
}

func TestRouterProcessEmitsOnlyOnSuccess(t *testing.T) {
	boom := errors.New("boom")
	r := &Router{Event: func(context.Context, document.Document) (document.Document, error) { return nil, boom }}
	rec := &recorder{}

	err := r.Process(context.Background(), pair(document.KindEvent, document.Document{}), rec.emit)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.pairs)

	require.NoError(t, r.Process(context.Background(), pair(document.KindStart, document.Document{"uid": "r"}), rec.emit))
	assert.Equal(t, []document.Kind{document.KindStart}, rec.kinds())
}
