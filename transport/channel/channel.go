// Package channel provides an in-process Go channel transport. Publisher and
// subscriber share one GoChannel, so relaying channel://a to channel://b
// inside one process works without a broker.
package channel

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/bluesky/docrelay/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

var (
	sharedMu sync.Mutex
	shared   *gochannel.GoChannel
)

// Factory allows overriding the channel creation for testing. The default
// hands every caller the same process-wide GoChannel.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = gochannel.NewGoChannel(cfg, logger)
	}
	return shared, shared
}

// Reset drops the shared GoChannel so the next Build starts fresh.
func Reset() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		_ = shared.Close()
		shared = nil
	}
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new Go channel transport. Subscribers block the publisher
// until they ack, which keeps documents of a run in order.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(gochannel.Config{BlockPublishUntilSubscriberAck: true}, logger)
	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
