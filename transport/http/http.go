// Package http provides an HTTP transport for docrelay.
//
// Outbound, every document is POSTed to <url>/<topic>. Inbound, the relay
// listens on the URL's host and accepts POSTs on /<topic>; a request is
// answered once the relay has acked the document, so a producer that posts
// one document at a time keeps its order. The listener only starts when the
// endpoint is subscribed to, which lets a send_to endpoint point at a remote
// host.
package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/bluesky/docrelay/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates a new HTTP transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	httpCfg, ok := cfg.(transport.HTTPConfig)
	if !ok || httpCfg.GetHTTPURL() == "" {
		return transport.Transport{}, errors.New("http: no URL configured")
	}
	base, err := url.Parse(httpCfg.GetHTTPURL())
	if err != nil {
		return transport.Transport{}, fmt.Errorf("http: %w", err)
	}

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(TopicURL(base, topic), msg)
			},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("http publisher: %w", err)
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: &listener{addr: base.Host, logger: logger},
	}, nil
}

// TopicURL is where documents for topic are posted.
func TopicURL(base *url.URL, topic string) string {
	return strings.TrimSuffix(base.String(), "/") + topicPath(topic)
}

func topicPath(topic string) string {
	return "/" + strings.TrimPrefix(topic, "/")
}

type serverStarter interface {
	StartHTTPServer() error
}

// listener creates the HTTP subscriber on first Subscribe and starts its
// server once the route is registered.
type listener struct {
	addr   string
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	sub     message.Subscriber
	started bool
}

func (l *listener) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sub == nil {
		sub, err := SubscriberFactory(l.addr, http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
		}, l.logger)
		if err != nil {
			return nil, fmt.Errorf("http subscriber: %w", err)
		}
		l.sub = sub
	}

	msgs, err := l.sub.Subscribe(ctx, topicPath(topic))
	if err != nil {
		return nil, err
	}
	if s, ok := l.sub.(serverStarter); ok && !l.started {
		l.started = true
		go func() {
			if err := s.StartHTTPServer(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				l.logger.Error("HTTP subscriber server stopped", err, watermill.LogFields{"addr": l.addr})
			}
		}()
	}
	return msgs, nil
}

func (l *listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub == nil {
		return nil
	}
	return l.sub.Close()
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
