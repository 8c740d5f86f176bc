package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	"github.com/bluesky/docrelay/internal/runtime/resolver"
)

type datumRecord struct {
	resource string
	kwargs   map[string]any
}

// Filler replaces external-data placeholders in events and event pages with
// the payloads returned by the resolver registry. It records the run's
// descriptors, resources and datums as they pass so later placeholders can be
// resolved. All other documents pass through unchanged.
type Filler struct {
	resolvers *resolver.Registry

	descriptors map[string]document.Document
	resources   map[string]resolver.Resource
	datums      map[string]datumRecord

	router Router
}

// NewFiller creates a Filler resolving through reg.
func NewFiller(reg *resolver.Registry) *Filler {
	f := &Filler{
		resolvers:   reg,
		descriptors: make(map[string]document.Document),
		resources:   make(map[string]resolver.Resource),
		datums:      make(map[string]datumRecord),
	}
	f.router = Router{
		Descriptor: f.onDescriptor,
		Resource:   f.onResource,
		Datum:      f.onDatum,
		DatumPage:  f.onDatumPage,
		Event:      f.onEvent,
		EventPage:  f.onEventPage,
	}
	return f
}

func (f *Filler) Process(ctx context.Context, p document.Pair, emit Emitter) error {
	out, err := f.Fill(ctx, p)
	if err != nil {
		return err
	}
	return emit(ctx, out)
}

// Fill records or fills p without emitting it.
func (f *Filler) Fill(ctx context.Context, p document.Pair) (document.Pair, error) {
	return f.router.Dispatch(ctx, p)
}

func (f *Filler) onDescriptor(_ context.Context, doc document.Document) (document.Document, error) {
	if uid := doc.UID(); uid != "" {
		f.descriptors[uid] = doc
	}
	return doc, nil
}

func (f *Filler) onResource(_ context.Context, doc document.Document) (document.Document, error) {
	res, err := resolver.ResourceFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}
	f.resources[res.UID] = res
	return doc, nil
}

func (f *Filler) onDatum(_ context.Context, doc document.Document) (document.Document, error) {
	id, err := doc.Require(document.FieldDatumID)
	if err != nil {
		return nil, fmt.Errorf("datum: %w", err)
	}
	res, err := doc.Require(document.FieldResource)
	if err != nil {
		return nil, fmt.Errorf("datum %s: %w", id, err)
	}
	f.datums[id] = datumRecord{resource: res, kwargs: doc.Map(document.FieldDatumKwargs)}
	return doc, nil
}

func (f *Filler) onDatumPage(_ context.Context, doc document.Document) (document.Document, error) {
	res, err := doc.Require(document.FieldResource)
	if err != nil {
		return nil, fmt.Errorf("datum_page: %w", err)
	}
	ids, ok := document.Strings(doc[document.FieldDatumID])
	if !ok {
		return nil, fmt.Errorf("datum_page: %w: %q must be a list of strings", errspkg.ErrMissingField, document.FieldDatumID)
	}
	columns := doc.Map(document.FieldDatumKwargs)
	for i, id := range ids {
		kwargs := make(map[string]any, len(columns))
		for key, raw := range columns {
			col, ok := raw.([]any)
			if !ok || len(col) != len(ids) {
				return nil, fmt.Errorf("datum_page: datum_kwargs column %q does not match %d datum ids", key, len(ids))
			}
			kwargs[key] = col[i]
		}
		f.datums[id] = datumRecord{resource: res, kwargs: kwargs}
	}
	return doc, nil
}

func (f *Filler) onEvent(ctx context.Context, doc document.Document) (document.Document, error) {
	data := doc.Map(document.FieldData)
	filled := doc.Map(document.FieldFilled)
	external := f.externalKeys(doc)

	var fields []string
	for field := range data {
		if isPlaceholder(field, external, filled[field]) {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return doc, nil
	}
	slices.Sort(fields)

	values := make(map[string]any, len(fields))
	for _, field := range fields {
		v, err := f.resolveField(ctx, field, data[field])
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", doc.UID(), err)
		}
		values[field] = v
	}

	out := doc.Clone()
	outData := out.Map(document.FieldData)
	outFilled := out.Map(document.FieldFilled)
	if outFilled == nil {
		outFilled = document.Document{}
	}
	for field, v := range values {
		outData[field] = v
		outFilled[field] = true
	}
	out[document.FieldFilled] = map[string]any(outFilled)
	return out, nil
}

func (f *Filler) onEventPage(ctx context.Context, doc document.Document) (document.Document, error) {
	data := doc.Map(document.FieldData)
	filled := doc.Map(document.FieldFilled)
	external := f.externalKeys(doc)

	type cell struct {
		field string
		row   int
	}
	var cells []cell
	for field, raw := range data {
		col, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("event_page: data column %q is not a list", field)
		}
		flags, _ := filled[field].([]any)
		for row := range col {
			var flag any
			if row < len(flags) {
				flag = flags[row]
			}
			if isPlaceholder(field, external, flag) {
				cells = append(cells, cell{field: field, row: row})
			}
		}
	}
	if len(cells) == 0 {
		return doc, nil
	}
	slices.SortFunc(cells, func(a, b cell) int {
		return cmp.Or(strings.Compare(a.field, b.field), cmp.Compare(a.row, b.row))
	})

	values := make([]any, len(cells))
	for i, c := range cells {
		col := data[c.field].([]any)
		v, err := f.resolveField(ctx, c.field, col[c.row])
		if err != nil {
			return nil, fmt.Errorf("event_page row %d: %w", c.row, err)
		}
		values[i] = v
	}

	out := doc.Clone()
	outData := out.Map(document.FieldData)
	outFilled := out.Map(document.FieldFilled)
	if outFilled == nil {
		outFilled = document.Document{}
	}
	for i, c := range cells {
		col := outData[c.field].([]any)
		col[c.row] = values[i]

		flags, _ := outFilled[c.field].([]any)
		if len(flags) < len(col) {
			grown := make([]any, len(col))
			for j := range grown {
				grown[j] = false
			}
			copy(grown, flags)
			flags = grown
		}
		flags[c.row] = true
		outFilled[c.field] = flags
	}
	out[document.FieldFilled] = map[string]any(outFilled)
	return out, nil
}

// externalKeys returns the fields the event's descriptor declares as stored
// externally. It is nil when the descriptor has not been seen.
func (f *Filler) externalKeys(doc document.Document) map[string]bool {
	desc, ok := f.descriptors[doc.String(document.FieldDescriptor)]
	if !ok {
		return nil
	}
	keys := desc.Map(document.FieldDataKeys)
	external := make(map[string]bool, len(keys))
	for field := range keys {
		spec := keys.Map(field)
		if v, ok := spec[document.FieldExternal]; ok && v != nil && v != "" && v != false {
			external[field] = true
		}
	}
	return external
}

// isPlaceholder reports whether a field value still has to be resolved. A
// field already flagged filled is never resolved again.
func isPlaceholder(field string, external map[string]bool, filledFlag any) bool {
	flag, hasFlag := filledFlag.(bool)
	if hasFlag && flag {
		return false
	}
	return external[field] || hasFlag
}

// resolveField follows a datum id to its resource and asks the registry for
// the payload.
func (f *Filler) resolveField(ctx context.Context, field string, value any) (any, error) {
	datumID, ok := value.(string)
	if !ok || datumID == "" {
		return nil, fmt.Errorf("%w: field %q holds %T, not a datum id", errspkg.ErrResolutionLookup, field, value)
	}
	datum, ok := f.datums[datumID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown datum %q for field %q", errspkg.ErrResolutionLookup, datumID, field)
	}
	res, ok := f.resources[datum.resource]
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource %q for datum %q", errspkg.ErrResolutionLookup, datum.resource, datumID)
	}
	return f.resolvers.Resolve(ctx, res, datumID, datum.kwargs)
}
