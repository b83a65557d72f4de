package pairing

import "github.com/evanlin/wakunoise/noise"

// wireVersion tags every frame this module puts on the wire, ahead of
// the serialized PayloadV2, so a Decoder can reject anything from an
// incompatible future encoding without attempting to parse it.
const wireVersion byte = 2

// DecodedMessage is one payload a Receiver's subscription yielded: it
// has already passed the decoder's version and structural checks.
type DecodedMessage struct {
	Payload *noise.PayloadV2
}

// Encoder renders a PayloadV2 to wire bytes for a fixed content topic.
type Encoder interface {
	ContentTopic() string
	ToWire(p *noise.PayloadV2) ([]byte, error)
}

// Decoder parses wire bytes back into a PayloadV2 for a fixed content
// topic. FromWire returning an error means "drop silently" at the
// Receiver boundary (spec.md §7): it must never be treated as fatal by
// callers driving a subscription loop.
type Decoder interface {
	ContentTopic() string
	FromWire(data []byte) (*noise.PayloadV2, error)
}

// Sender pushes one message out on the transport, addressed by the
// encoder's content topic. It must be safe to call synchronously from
// the pairing driver's suspension points (spec.md §6.3).
type Sender interface {
	Send(enc Encoder, payload *noise.PayloadV2) error
}

// Receiver subscribes to a content topic and yields messages that
// decode successfully, in arrival order. The returned stop function
// unsubscribes and must be safe to call more than once.
type Receiver interface {
	Subscribe(dec Decoder) (msgs <-chan DecodedMessage, stop func())
}

// PayloadEncoder is the default Encoder: version byte + serialized
// PayloadV2.
type PayloadEncoder struct {
	Topic string
}

func (e PayloadEncoder) ContentTopic() string { return e.Topic }

func (e PayloadEncoder) ToWire(p *noise.PayloadV2) ([]byte, error) {
	body, err := p.Serialize()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, wireVersion)
	out = append(out, body...)
	return out, nil
}

// PayloadDecoder is the default Decoder, the mirror of PayloadEncoder.
type PayloadDecoder struct {
	Topic string
}

func (d PayloadDecoder) ContentTopic() string { return d.Topic }

func (d PayloadDecoder) FromWire(data []byte) (*noise.PayloadV2, error) {
	if len(data) < 1 || data[0] != wireVersion {
		return nil, ErrUnsupportedWireVersion
	}
	return noise.DeserializePayloadV2(data[1:])
}
