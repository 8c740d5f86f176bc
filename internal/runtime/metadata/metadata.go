package metadata

// Metadata represents the headers carried alongside a relayed document.
type Metadata map[string]string

// Header keys written or read by the relay.
const (
	// KeyDocumentName carries the document kind ("start", "event", ...).
	KeyDocumentName = "document_name"

	// KeyCorrelationID tracks an inbound message through the relay.
	KeyCorrelationID = "correlation_id"

	// KeyRunUID names the run a relayed document belongs to.
	KeyRunUID = "run_uid"
)

func (m Metadata) cloneWithExtra(extra int) Metadata {
	cloned := make(Metadata, len(m)+extra)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// Pick returns a new map holding only the listed keys that are present in m.
func (m Metadata) Pick(keys ...string) Metadata {
	picked := make(Metadata, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			picked[k] = v
		}
	}
	return picked
}
