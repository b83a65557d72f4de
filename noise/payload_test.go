package noise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadV2SerializeRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	p := &PayloadV2{
		MessageNametag:   BytesToMessageNametag([]byte("0123456789abcdef")),
		ProtocolId:       ProtocolIDWakuPairing,
		HandshakeKeys:    []NoisePublicKey{newPlainPublicKey(kp.Public)},
		TransportMessage: []byte("hello wakunoise"),
	}

	serialized, err := p.Serialize()
	require.NoError(t, err)

	parsed, err := DeserializePayloadV2(serialized)
	require.NoError(t, err)
	require.Equal(t, p.MessageNametag, parsed.MessageNametag)
	require.Equal(t, p.ProtocolId, parsed.ProtocolId)
	require.Equal(t, p.TransportMessage, parsed.TransportMessage)
	require.Len(t, parsed.HandshakeKeys, 1)
	require.Equal(t, kp.Public, parsed.HandshakeKeys[0].Plain())
}

func TestPayloadV2SerializeRoundTripNoKeys(t *testing.T) {
	p := &PayloadV2{
		MessageNametag:   BytesToMessageNametag([]byte("nametagnametag16")),
		ProtocolId:       ProtocolIDNone,
		TransportMessage: []byte{1, 2, 3, 4},
	}
	serialized, err := p.Serialize()
	require.NoError(t, err)

	parsed, err := DeserializePayloadV2(serialized)
	require.NoError(t, err)
	require.Empty(t, parsed.HandshakeKeys)
	require.Equal(t, p.TransportMessage, parsed.TransportMessage)
}

func TestPayloadV2SerializeRejectsOversizedKeySection(t *testing.T) {
	keys := make([]NoisePublicKey, 0, 10)
	for i := 0; i < 10; i++ {
		ciphertext := make([]byte, KeySize+TagSize)
		keys = append(keys, newEncryptedPublicKey(ciphertext))
	}
	p := &PayloadV2{HandshakeKeys: keys}
	_, err := p.Serialize()
	require.ErrorIs(t, err, ErrHandshakeTooLarge)
}

func TestDeserializePayloadV2RejectsTruncatedInput(t *testing.T) {
	_, err := DeserializePayloadV2(make([]byte, 5))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestDeserializePayloadV2RejectsShortKeySection(t *testing.T) {
	buf := make([]byte, MessageNametagLength+1+1)
	buf[MessageNametagLength+1] = 200 // claims 200 bytes of keys but none follow
	_, err := DeserializePayloadV2(buf)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestDeserializePayloadV2RejectsShortTransportLength(t *testing.T) {
	buf := make([]byte, MessageNametagLength+1+1+8-1)
	_, err := DeserializePayloadV2(buf)
	require.ErrorIs(t, err, ErrInvalidKey)
}
