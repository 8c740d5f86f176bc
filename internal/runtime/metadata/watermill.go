package metadata

import (
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"
)

// forwardedKeys are copied from an inbound message onto everything relayed
// because of it.
var forwardedKeys = []string{KeyCorrelationID}

// Forwarded returns the inbound headers that carry over to outbound messages.
// Empty values are dropped.
func Forwarded(md message.Metadata) Metadata {
	out := make(Metadata, len(forwardedKeys))
	for _, k := range forwardedKeys {
		if v := md.Get(k); v != "" {
			out[k] = v
		}
	}
	return out
}

// ToWatermill copies relay headers into a Watermill map.
func ToWatermill(md Metadata) message.Metadata {
	wm := make(message.Metadata, len(md))
	maps.Copy(wm, md)
	return wm
}
