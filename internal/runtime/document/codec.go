package document

import (
	"bytes"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	idspkg "github.com/bluesky/docrelay/internal/runtime/ids"
	jsoncodec "github.com/bluesky/docrelay/internal/runtime/jsoncodec"
	metadatapkg "github.com/bluesky/docrelay/internal/runtime/metadata"
)

// Envelope is the self-framed form of a pair, used when a transport carries no
// metadata and by the catalog files.
type Envelope struct {
	Name string   `json:"name"`
	Doc  Document `json:"doc"`
}

// Encode wraps a pair into a Watermill message. The kind travels in metadata
// and the body is the bare document.
func Encode(p Pair, md metadatapkg.Metadata) (*message.Message, error) {
	if !p.Name.Valid() {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnrecognizedDocumentKind, p.Name)
	}
	payload, err := jsoncodec.Marshal(p.Doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s document: %w", p.Name, err)
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.Metadata = metadatapkg.ToWatermill(md.With(metadatapkg.KeyDocumentName, p.Name.String()))
	return msg, nil
}

// Decode reads a pair from a Watermill message. Messages without the kind
// header are parsed as an Envelope.
func Decode(msg *message.Message) (Pair, error) {
	if name := msg.Metadata.Get(metadatapkg.KeyDocumentName); name != "" {
		kind, err := ParseKind(name)
		if err != nil {
			return Pair{}, err
		}
		var doc Document
		if err := jsoncodec.Unmarshal(msg.Payload, &doc); err != nil {
			return Pair{}, fmt.Errorf("failed to unmarshal %s document: %w", kind, err)
		}
		return Pair{Name: kind, Doc: doc}, nil
	}
	return DecodeEnvelope(msg.Payload)
}

// DecodeEnvelope parses a {"name": ..., "doc": ...} body.
func DecodeEnvelope(data []byte) (Pair, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Pair{}, fmt.Errorf("%w: empty payload", errspkg.ErrUnrecognizedDocumentKind)
	}
	var env Envelope
	if err := jsoncodec.Unmarshal(data, &env); err != nil {
		return Pair{}, fmt.Errorf("failed to unmarshal document envelope: %w", err)
	}
	kind, err := ParseKind(env.Name)
	if err != nil {
		return Pair{}, err
	}
	if env.Doc == nil {
		return Pair{}, fmt.Errorf("%w: envelope %q has no doc", errspkg.ErrMissingField, env.Name)
	}
	return Pair{Name: kind, Doc: env.Doc}, nil
}

// EncodeEnvelope renders a pair in its self-framed form.
func EncodeEnvelope(p Pair) ([]byte, error) {
	return jsoncodec.Marshal(Envelope{Name: p.Name.String(), Doc: p.Doc})
}
