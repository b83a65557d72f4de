package noise

import "encoding/binary"

// PayloadV2 is the wire envelope carrying both handshake and
// post-handshake traffic, per spec.md §4.8.
type PayloadV2 struct {
	MessageNametag    MessageNametag
	ProtocolId        uint8
	HandshakeKeys     []NoisePublicKey
	TransportMessage  []byte
}

// Serialize renders a PayloadV2 in wire order: nametag, protocol id,
// handshake-key section length + keys, transport message length +
// bytes. It fails with ErrHandshakeTooLarge if the handshake-key
// section would exceed 255 bytes.
func (p *PayloadV2) Serialize() ([]byte, error) {
	keyBytes := make([]byte, 0, 64)
	for _, k := range p.HandshakeKeys {
		keyBytes = append(keyBytes, k.Serialize()...)
	}
	if len(keyBytes) > 255 {
		return nil, ErrHandshakeTooLarge
	}

	out := make([]byte, 0, MessageNametagLength+1+1+len(keyBytes)+8+len(p.TransportMessage))
	out = append(out, p.MessageNametag[:]...)
	out = append(out, p.ProtocolId)
	out = append(out, byte(len(keyBytes)))
	out = append(out, keyBytes...)

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p.TransportMessage)))
	out = append(out, lenBuf[:]...)
	out = append(out, p.TransportMessage...)

	return out, nil
}

// DeserializePayloadV2 parses the wire format produced by Serialize,
// rejecting truncated input or a declared length that doesn't fit.
func DeserializePayloadV2(b []byte) (*PayloadV2, error) {
	if len(b) < MessageNametagLength+1+1 {
		return nil, ErrInvalidKey
	}
	p := &PayloadV2{}
	copy(p.MessageNametag[:], b[:MessageNametagLength])
	b = b[MessageNametagLength:]

	p.ProtocolId = b[0]
	b = b[1:]

	keySectionLen := int(b[0])
	b = b[1:]
	if len(b) < keySectionLen {
		return nil, ErrInvalidKey
	}
	keySection := b[:keySectionLen]
	b = b[keySectionLen:]

	for len(keySection) > 0 {
		key, n, err := DeserializeNoisePublicKey(keySection)
		if err != nil {
			return nil, err
		}
		p.HandshakeKeys = append(p.HandshakeKeys, key)
		keySection = keySection[n:]
	}

	if len(b) < 8 {
		return nil, ErrInvalidKey
	}
	msgLen := binary.LittleEndian.Uint64(b[:8])
	b = b[8:]
	if uint64(len(b)) < msgLen {
		return nil, ErrInvalidKey
	}
	p.TransportMessage = append([]byte{}, b[:msgLen]...)

	return p, nil
}
