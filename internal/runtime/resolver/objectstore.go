package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// SpecNATSObject resolves datums against a NATS JetStream object store.
const SpecNATSObject = "NATS_OBJECT"

// objectBucket is the slice of jetstream.ObjectStore the resolver reads through.
type objectBucket interface {
	GetBytes(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) ([]byte, error)
}

// bucketOpener returns the object store for a bucket name.
type bucketOpener func(ctx context.Context, bucket string) (objectBucket, error)

// ObjectStore fetches the object named by resource_path (or the "object"
// parameter) from the bucket named in the resource kwargs, and decodes it as
// JSON. An "index" parameter selects one element of an array payload.
type ObjectStore struct {
	open bucketOpener

	mu      sync.Mutex
	buckets map[string]objectBucket
}

// NewObjectStore wires the resolver to an existing JetStream context.
func NewObjectStore(js jetstream.JetStream) *ObjectStore {
	return newObjectStore(func(ctx context.Context, bucket string) (objectBucket, error) {
		return js.ObjectStore(ctx, bucket)
	})
}

// DialObjectStore connects to NATS at url and returns a resolver plus the
// connection so the caller can close it on shutdown.
func DialObjectStore(url string) (*ObjectStore, *nats.Conn, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return NewObjectStore(js), nc, nil
}

func newObjectStore(open bucketOpener) *ObjectStore {
	return &ObjectStore{open: open, buckets: make(map[string]objectBucket)}
}

func (o *ObjectStore) Resolve(ctx context.Context, res Resource, params map[string]any) (any, error) {
	bucketName := stringParam(params, ParamBucket, "")
	if bucketName == "" {
		return nil, fmt.Errorf("nats object: %s parameter is required", ParamBucket)
	}
	name := stringParam(params, ParamObject, res.ResourcePath)
	if name == "" {
		return nil, fmt.Errorf("nats object: no object name in resource %s", res.UID)
	}

	bucket, err := o.bucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	data, err := bucket.GetBytes(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("nats object get %s/%s: %w", bucketName, name, err)
	}

	selected := make(map[string]any, 1)
	if idx, ok := params[ParamIndex]; ok {
		selected[ParamIndex] = idx
	}
	return decodePayload(data, selected)
}

func (o *ObjectStore) bucket(ctx context.Context, name string) (objectBucket, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if b, ok := o.buckets[name]; ok {
		return b, nil
	}
	b, err := o.open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("nats object store %s: %w", name, err)
	}
	o.buckets[name] = b
	return b, nil
}
