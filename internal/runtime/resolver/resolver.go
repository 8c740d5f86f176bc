// Package resolver turns external-data references (a resource record plus a
// datum's parameters) into concrete payloads. Each source kind ("spec" in the
// resource record) maps onto one Resolver in a Registry.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

// Resource is the decoded form of a resource ("resolution") record.
type Resource struct {
	UID          string
	Spec         string
	Root         string
	ResourcePath string
	Kwargs       map[string]any
}

// ResourceFromDocument reads the fields a resolver needs out of a resource record.
func ResourceFromDocument(doc document.Document) (Resource, error) {
	uid, err := doc.Require(document.FieldUID)
	if err != nil {
		return Resource{}, err
	}
	spec, err := doc.Require(document.FieldSpec)
	if err != nil {
		return Resource{}, err
	}
	return Resource{
		UID:          uid,
		Spec:         spec,
		Root:         doc.String(document.FieldRoot),
		ResourcePath: doc.String(document.FieldResourcePath),
		Kwargs:       doc.Map(document.FieldResourceKwargs),
	}, nil
}

// Resolver produces the payload for one datum of a resource. params holds the
// resource kwargs overlaid with the datum kwargs.
type Resolver interface {
	Resolve(ctx context.Context, res Resource, params map[string]any) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, res Resource, params map[string]any) (any, error)

func (f ResolverFunc) Resolve(ctx context.Context, res Resource, params map[string]any) (any, error) {
	return f(ctx, res, params)
}

// Registry maps source kinds to resolvers.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

// Register binds spec to r, replacing any previous binding.
func (r *Registry) Register(spec string, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[spec] = res
}

// Lookup returns the resolver for spec or ErrResolverNotFound.
func (r *Registry) Lookup(spec string) (Resolver, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrResolverNotFound, spec)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[spec]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrResolverNotFound, spec)
	}
	return res, nil
}

// Specs returns the registered source kinds, sorted.
func (r *Registry) Specs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]string, 0, len(r.resolvers))
	for spec := range r.resolvers {
		specs = append(specs, spec)
	}
	sort.Strings(specs)
	return specs
}

// Resolve looks up the resolver for the resource's spec and calls it with
// the merged parameters. Resolver failures come back as *ResolutionError.
func (r *Registry) Resolve(ctx context.Context, res Resource, datumID string, datumKwargs map[string]any) (any, error) {
	impl, err := r.Lookup(res.Spec)
	if err != nil {
		return nil, err
	}
	value, err := impl.Resolve(ctx, res, document.Merge(res.Kwargs, datumKwargs))
	if err != nil {
		return nil, &errspkg.ResolutionError{
			Spec:     res.Spec,
			Resource: res.UID,
			Datum:    datumID,
			Err:      err,
		}
	}
	return value, nil
}
