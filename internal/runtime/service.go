package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/bluesky/docrelay/internal/runtime/config"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	loggingpkg "github.com/bluesky/docrelay/internal/runtime/logging"
	"github.com/bluesky/docrelay/internal/runtime/pipeline"
	"github.com/bluesky/docrelay/transport"
)

// HandlerName is the name of the single router handler the Service runs.
const HandlerName = "docrelay"

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the collaborators the Service is built from.
type ServiceDependencies struct {
	// Pipeline assembles the stages of every run. Required.
	Pipeline pipeline.Factory

	// Transports defaults to transport.DefaultRegistry.
	Transports *transport.Registry

	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
}

// Service wires the inbound subscriber, the relay handler and the outbound
// publisher into one Watermill router.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	inbound  transport.Transport
	outbound transport.Transport
	router   *message.Router
	relay    *Relay
	metrics  *RelayMetrics

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewService validates conf, builds both transports and registers the relay
// handler. Call Start to run it.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, err
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if deps.Pipeline == nil {
		return nil, errspkg.ErrFactoryRequired
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating relay service", loggingpkg.LogFields{
		"receive_from": conf.Inbound.PubSubSystem,
		"send_to":      conf.Outbound.PubSubSystem,
		"config":       conf.String(),
	})

	registry := deps.Transports
	if registry == nil {
		registry = transport.DefaultRegistry
	}
	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Service{
		Conf:       conf,
		Logger:     log,
		registerer: registerer,
		gatherer:   gatherer,
		metrics:    NewRelayMetrics(registerer),
	}

	var err error
	s.inbound, err = registry.Build(ctx, conf.Inbound, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("receive_from %s: %w", conf.Inbound.PubSubSystem, err)
	}
	s.outbound, err = registry.Build(ctx, conf.Outbound, wmLogger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("send_to %s: %w", conf.Outbound.PubSubSystem, err), s.inbound.Close())
	}

	for _, warning := range registry.GetCapabilities(conf.Inbound.PubSubSystem).Warnings() {
		log.Info("Inbound transport caveat", loggingpkg.LogFields{
			"transport": conf.Inbound.PubSubSystem,
			"caveat":    warning,
		})
	}

	if err := s.build(deps, wmLogger); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

func (s *Service) build(deps ServiceDependencies, wmLogger watermill.LoggerAdapter) error {
	if s.Conf.Metrics.Enabled {
		if err := s.metrics.Register(); err != nil {
			return fmt.Errorf("register relay metrics: %w", err)
		}
	}

	relay, err := NewRelay(deps.Pipeline, s.Logger, s.metrics)
	if err != nil {
		return err
	}
	s.relay = relay

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		return err
	}
	s.router = router

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return err
	}

	s.router.AddHandler(
		HandlerName,
		s.Conf.Inbound.Topic,
		s.inbound.Subscriber,
		s.Conf.Outbound.Topic,
		s.outbound.Publisher,
		s.relay.Handle,
	)

	if s.Conf.Metrics.Enabled {
		s.RegisterHTTPHandler(s.Conf.Metrics.Port, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		s.RegisterHTTPHandler(s.Conf.Metrics.Port, "/status", http.HandlerFunc(s.handleStatus))
	}
	return nil
}

// Start runs the router until ctx is cancelled or the relay hits a
// processing error, which is then returned. Transports are closed on return.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.relay.OnFatal = func(error) { cancel() }

	servers := s.startHTTPServers()
	defer s.shutdownHTTPServers(servers)

	runErr := routerRun(s.router, ctx)
	closeErr := s.Close()
	if err := s.relay.Err(); err != nil {
		return err
	}
	return errors.Join(runErr, closeErr)
}

// Running is closed once the router has started its handler.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Close releases both transports. It is safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.inbound.Close(), s.outbound.Close())
	})
	return s.closeErr
}

// Metrics returns the relay's counters.
func (s *Service) Metrics() *RelayMetrics {
	return s.metrics
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts handler on the server for port, creating the
// server on first use. Servers start with Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() []*http.Server {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	servers := make([]*http.Server, 0, len(s.httpServers))
	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}
	return servers
}

func (s *Service) shutdownHTTPServers(servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to stop HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
		}
	}
}
