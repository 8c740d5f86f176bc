package transport

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockBuilder(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return Transport{
		Publisher:  &mockPublisher{},
		Subscriber: &mockSubscriber{},
	}, nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg)
	assert.Empty(t, reg.Names())
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	reg.Register("zeta", mockBuilder)
	reg.Register("alpha", mockBuilder)

	assert.True(t, reg.Has("zeta"))
	assert.False(t, reg.Has("beta"))
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
}

func TestRegistry_Capabilities(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWithCapabilities("ordered", mockBuilder, Capabilities{Name: "ordered", SupportsOrdering: true})

	assert.True(t, reg.GetCapabilities("ordered").SupportsOrdering)

	unknown := reg.GetCapabilities("unknown")
	assert.Equal(t, "unknown", unknown.Name)
	assert.False(t, unknown.SupportsOrdering)
}

func TestRegistry_Build(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test-transport", mockBuilder)

	tr, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "test-transport"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
}

func TestRegistry_BuildErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Register("known", mockBuilder)

	_, err := reg.Build(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport config is required")

	_, err = reg.Build(context.Background(), &mockConfig{pubSubSystem: "smoke-signals"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transport: "smoke-signals"`)
	assert.Contains(t, err.Error(), "known")
}

func TestPackageLevelRegistration(t *testing.T) {
	RegisterWithCapabilities("test-pkg-transport", mockBuilder, Capabilities{Name: "test-pkg-transport", SupportsAck: true})

	assert.True(t, DefaultRegistry.Has("test-pkg-transport"))
	assert.True(t, GetCapabilities("test-pkg-transport").SupportsAck)

	tr, err := Build(context.Background(), &mockConfig{pubSubSystem: "test-pkg-transport"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)

	Register("test-pkg-plain", mockBuilder)
	assert.True(t, DefaultRegistry.Has("test-pkg-plain"))
}
