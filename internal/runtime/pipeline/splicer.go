package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bluesky/docrelay/internal/runtime/catalog"
	configpkg "github.com/bluesky/docrelay/internal/runtime/config"
	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	idspkg "github.com/bluesky/docrelay/internal/runtime/ids"
	loggingpkg "github.com/bluesky/docrelay/internal/runtime/logging"
	"github.com/bluesky/docrelay/internal/runtime/resolver"
)

// SplicerConfig configures a Splicer.
type SplicerConfig struct {
	Catalog catalog.Catalog
	// Roles are looked up in the start document as "<role>_scan_id".
	// Defaults to config.DefaultRoles.
	Roles []string
	// Resolvers fill any placeholders left in the auxiliary run's events.
	Resolvers *resolver.Registry
	// NewUID mints replacement identifiers. Defaults to ids.CreateULID.
	NewUID idspkg.Generator
	Logger loggingpkg.ServiceLogger
}

// Splicer injects auxiliary calibration runs into a primary run right after
// its start document. Each auxiliary run's primary stream is re-emitted as a
// stream named after its role, with fresh descriptor and event identifiers.
// Every other document passes through untouched.
type Splicer struct {
	catalog   catalog.Catalog
	roles     []string
	resolvers *resolver.Registry
	newUID    idspkg.Generator
	logger    loggingpkg.ServiceLogger
}

func NewSplicer(cfg SplicerConfig) (*Splicer, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("%w: splicer needs a catalog", errspkg.ErrConfigRequired)
	}
	s := &Splicer{
		catalog:   cfg.Catalog,
		roles:     cfg.Roles,
		resolvers: cfg.Resolvers,
		newUID:    cfg.NewUID,
		logger:    cfg.Logger,
	}
	if len(s.roles) == 0 {
		s.roles = slices.Clone(configpkg.DefaultRoles)
	}
	if s.newUID == nil {
		s.newUID = idspkg.CreateULID
	}
	return s, nil
}

func (s *Splicer) Process(ctx context.Context, p document.Pair, emit Emitter) error {
	if !p.Name.Valid() {
		return fmt.Errorf("%w: %q", errspkg.ErrUnrecognizedDocumentKind, p.Name)
	}
	if err := emit(ctx, p); err != nil {
		return err
	}
	if p.Name != document.KindStart {
		return nil
	}

	runUID, err := p.Doc.Require(document.FieldUID)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	for _, role := range s.roles {
		id, ok := document.IDString(p.Doc[role+"_scan_id"])
		if !ok {
			continue
		}
		if err := s.splice(ctx, runUID, role, id, emit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Splicer) splice(ctx context.Context, runUID, role, id string, emit Emitter) error {
	run, err := s.catalog.Lookup(ctx, id)
	if err != nil {
		if !errors.Is(err, errspkg.ErrCatalogLookup) {
			err = fmt.Errorf("%w: %w", errspkg.ErrCatalogLookup, err)
		}
		return fmt.Errorf("splice %s run %q: %w", role, id, err)
	}

	descriptors := run.PrimaryDescriptors()
	if len(descriptors) == 0 {
		s.log().Debug("Auxiliary run has no primary descriptors", loggingpkg.LogFields{
			"role": role, "aux_run": id, "run_uid": runUID,
		})
		return nil
	}

	// old descriptor uid -> minted uid, valid only for this splice
	remap := make(map[string]string, len(descriptors))
	for _, desc := range descriptors {
		out := desc.Clone()
		out[document.FieldRunStart] = runUID
		out[document.FieldUID] = s.newUID()
		out[document.FieldName] = role
		remap[desc.UID()] = out.UID()
		if err := emit(ctx, document.Pair{Name: document.KindDescriptor, Doc: out}); err != nil {
			return err
		}
	}

	filler := NewFiller(s.resolvers)
	events := 0
	for p, err := range run.Documents(ctx) {
		if err != nil {
			return fmt.Errorf("splice %s run %q: %w", role, id, err)
		}
		switch p.Name {
		case document.KindDescriptor, document.KindResource, document.KindDatum, document.KindDatumPage:
			if _, err := filler.Fill(ctx, p); err != nil {
				return fmt.Errorf("splice %s run %q: %w", role, id, err)
			}
		case document.KindEvent, document.KindEventPage:
			descUID, ok := remap[p.Doc.String(document.FieldDescriptor)]
			if !ok {
				continue
			}
			filled, err := filler.Fill(ctx, p)
			if err != nil {
				return fmt.Errorf("splice %s run %q: %w", role, id, err)
			}
			out := filled.Doc.Clone()
			out[document.FieldDescriptor] = descUID
			if p.Name == document.KindEvent {
				out[document.FieldUID] = s.newUID()
			} else {
				out[document.FieldUID] = s.pageUIDs(out)
			}
			if err := emit(ctx, document.Pair{Name: p.Name, Doc: out}); err != nil {
				return err
			}
			events++
		}
	}

	s.log().Info("Spliced auxiliary run", loggingpkg.LogFields{
		"role":        role,
		"aux_run":     id,
		"run_uid":     runUID,
		"descriptors": len(descriptors),
		"events":      events,
	})
	return nil
}

// pageUIDs mints one uid per row of an event page.
func (s *Splicer) pageUIDs(page document.Document) []any {
	rows := 0
	if uids, ok := page[document.FieldUID].([]any); ok {
		rows = len(uids)
	} else {
		for _, col := range page.Map(document.FieldData) {
			if c, ok := col.([]any); ok {
				rows = len(c)
				break
			}
		}
	}
	out := make([]any, rows)
	for i, uid := range idspkg.Batch(s.newUID, rows) {
		out[i] = uid
	}
	return out
}

func (s *Splicer) log() loggingpkg.ServiceLogger {
	if s.logger == nil {
		return loggingpkg.Discard
	}
	return s.logger
}
