package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/bluesky/docrelay/internal/runtime/config"
	idspkg "github.com/bluesky/docrelay/internal/runtime/ids"
)

func passthrough(m *message.Message) ([]*message.Message, error) { return nil, nil }

func TestCorrelationIDMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("adds missing id", func(t *testing.T) {
		msg := message.NewMessage(idspkg.CreateULID(), nil)
		var got string
		_, err := correlationIDMiddleware(func(m *message.Message) ([]*message.Message, error) {
			got = m.Metadata.Get("correlation_id")
			return nil, nil
		})(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == "" {
			t.Fatal("expected correlation id to be populated")
		}
	})

	t.Run("keeps existing id", func(t *testing.T) {
		msg := message.NewMessage(idspkg.CreateULID(), nil)
		msg.Metadata.Set("correlation_id", "fixed")
		_, err := correlationIDMiddleware(func(m *message.Message) ([]*message.Message, error) {
			if m.Metadata.Get("correlation_id") != "fixed" {
				t.Fatal("expected correlation id to be preserved")
			}
			return nil, nil
		})(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestLogMessagesMiddleware(t *testing.T) {
	log, buf := newTestLogger(t)
	msg := message.NewMessage("log-uuid", []byte(`{"uid":"R1"}`))
	msg.Metadata.Set("document_name", "start")

	_, err := logMessagesMiddleware(log)(passthrough)(msg)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Processing message")
	assert.Contains(t, out, "log-uuid")
	assert.Contains(t, out, "document_name=start")
}

func TestLogMessagesMiddlewareValidations(t *testing.T) {
	reg := LogMessagesMiddleware(nil)
	if _, err := reg.Builder(&Service{}); err == nil {
		t.Fatal("expected error without a logger")
	}
}

func TestTracerMiddleware(t *testing.T) {
	t.Parallel()

	msg := message.NewMessage(idspkg.CreateULID(), nil)
	msg.SetContext(context.Background())
	var observed trace.Span
	_, err := tracerMiddleware(func(m *message.Message) ([]*message.Message, error) {
		observed = trace.SpanFromContext(m.Context())
		return nil, nil
	})(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if observed == nil {
		t.Fatal("expected span to be attached to context")
	}
}

func TestTracerMiddlewarePassesErrorsThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	msg := message.NewMessage(idspkg.CreateULID(), nil)
	_, err := tracerMiddleware(func(m *message.Message) ([]*message.Message, error) {
		return nil, boom
	})(msg)
	assert.ErrorIs(t, err, boom)
}

func TestRecovererMiddlewareTurnsPanicIntoError(t *testing.T) {
	t.Parallel()

	reg := RecovererMiddleware()
	msg := message.NewMessage(idspkg.CreateULID(), nil)
	_, err := reg.Middleware(func(m *message.Message) ([]*message.Message, error) {
		panic("pipeline exploded")
	})(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline exploded")
}

func TestDefaultMiddlewares(t *testing.T) {
	names := make([]string, 0)
	for _, reg := range DefaultMiddlewares() {
		names = append(names, reg.Name)
	}
	assert.Equal(t, []string{"correlation_id", "log_messages", "tracer", "metrics", "recoverer"}, names)
	for _, name := range names {
		assert.False(t, strings.Contains(name, "retry") || strings.Contains(name, "poison"))
	}
}

func TestRegisterMiddlewareValidations(t *testing.T) {
	t.Parallel()

	t.Run("requires router", func(t *testing.T) {
		svc := &Service{}
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Middleware: func(h message.HandlerFunc) message.HandlerFunc { return h },
		})
		if err == nil {
			t.Fatal("expected error when router is missing")
		}
	})

	t.Run("requires configuration", func(t *testing.T) {
		svc := &Service{router: newTestRouter(t)}
		if err := svc.RegisterMiddleware(MiddlewareRegistration{}); err == nil {
			t.Fatal("expected error when registration empty")
		}
	})

	t.Run("invokes builder", func(t *testing.T) {
		svc := &Service{router: newTestRouter(t)}
		built := false
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Builder: func(s *Service) (message.HandlerMiddleware, error) {
				built = true
				return func(h message.HandlerFunc) message.HandlerFunc { return h }, nil
			},
		})
		require.NoError(t, err)
		assert.True(t, built)
	})

	t.Run("handles builder error", func(t *testing.T) {
		svc := &Service{router: newTestRouter(t)}
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Builder: func(s *Service) (message.HandlerMiddleware, error) {
				return nil, errors.New("builder failed")
			},
		})
		assert.EqualError(t, err, "builder failed")
	})

	t.Run("handles nil middleware from builder", func(t *testing.T) {
		svc := &Service{router: newTestRouter(t)}
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Builder: func(s *Service) (message.HandlerMiddleware, error) { return nil, nil },
		})
		assert.NoError(t, err)
	})
}

func TestMetricsMiddleware(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc := &Service{Conf: configpkg.Default(), router: newTestRouter(t)}
		mw, err := MetricsMiddleware().Builder(svc)
		require.NoError(t, err)
		assert.Nil(t, mw)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := channelConfig(t, "in", "out")
		cfg.Metrics.Enabled = true
		reg := prometheus.NewRegistry()
		svc := &Service{Conf: cfg, router: newTestRouter(t), registerer: reg}

		mw, err := MetricsMiddleware().Builder(svc)
		require.NoError(t, err)
		assert.NotNil(t, mw)
	})
}

func newTestRouter(t *testing.T) *message.Router {
	t.Helper()
	router, err := message.NewRouter(message.RouterConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	return router
}
