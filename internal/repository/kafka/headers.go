package kafka

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

var (
	_ propagation.TextMapCarrier = (*outgoingHeaders)(nil)
	_ propagation.TextMapCarrier = incomingHeaders(nil)
)

// outgoingHeaders collects propagation fields as Kafka headers of a message
// about to be written.
type outgoingHeaders struct {
	list []kafka.Header
}

func (h *outgoingHeaders) Get(key string) string { return incomingHeaders(h.list).Get(key) }

func (h *outgoingHeaders) Set(key, value string) {
	for i := range h.list {
		if h.list[i].Key == key {
			h.list[i].Value = []byte(value)
			return
		}
	}
	h.list = append(h.list, kafka.Header{Key: key, Value: []byte(value)})
}

func (h *outgoingHeaders) Keys() []string { return incomingHeaders(h.list).Keys() }

// incomingHeaders exposes a consumed message's headers for extraction. It is
// read-only.
type incomingHeaders []kafka.Header

func (h incomingHeaders) Get(key string) string {
	for _, x := range h {
		if x.Key == key {
			return string(x.Value)
		}
	}
	return ""
}

func (incomingHeaders) Set(string, string) {}

func (h incomingHeaders) Keys() []string {
	keys := make([]string, len(h))
	for i, x := range h {
		keys[i] = x.Key
	}
	return keys
}
