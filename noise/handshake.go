package noise

import (
	"fmt"
	"math/big"
)

// nametagSecretsLabel is the fixed HKDF input mixed into the chaining
// key to derive the two post-handshake nametag secrets. spec.md §9
// leaves this label unspecified; SPEC_FULL.md §9 item 1 fixes it here
// so two instances of this module interoperate.
var nametagSecretsLabel = []byte("WakuPairingNametagSecrets")

// StepInput carries the caller-supplied half of one handshake step:
// either the transport message to write, or the payload just read off
// the transport, plus the message nametag that applies either way.
type StepInput struct {
	TransportMessage []byte
	ReadPayload      *PayloadV2
	MessageNametag   MessageNametag
}

// StepResult carries whichever half of the step the caller didn't
// supply: the payload to send (when writing) or the decrypted
// transport message (when reading).
type StepResult struct {
	PayloadV2        *PayloadV2
	TransportMessage []byte
}

// Handshake drives a HandshakeState one message at a time and, once
// complete, yields a HandshakeResult.
type Handshake struct {
	hs     *HandshakeState
	result *HandshakeResult
}

// NewHandshake builds a Handshake for the given pattern. preMessageKeys
// supplies the raw public keys exchanged out-of-band for the pattern's
// declared pre-messages, in order.
func NewHandshake(pattern HandshakePattern, initiator bool, prologue []byte, s, e *KeyPair, psk []byte, preMessageKeys [][KeySize]byte) (*Handshake, error) {
	hs, err := newHandshakeState(pattern, initiator, prologue, s, e, psk, preMessageKeys)
	if err != nil {
		return nil, err
	}
	return &Handshake{hs: hs}, nil
}

// IsComplete reports whether FinalizeHandshake has already run.
func (h *Handshake) IsComplete() bool {
	return h.result != nil
}

// RemoteStaticKey returns the peer's static public key once the
// message carrying its 's' token has been processed, before finalize
// runs. This lets a pairing driver verify a static-key commitment
// against the key a message just disclosed, rather than waiting for
// the whole handshake to complete.
func (h *Handshake) RemoteStaticKey() ([KeySize]byte, bool) {
	if h.hs.rs == nil {
		return [KeySize]byte{}, false
	}
	return *h.hs.rs, true
}

// ToMessageNametag snapshots HKDF(ck, h) as the nametag for the next
// handshake message, used between steps once no more out-of-band
// nametags (like the QR-exchanged one) are available.
func (h *Handshake) ToMessageNametag() (MessageNametag, error) {
	if h.hs.poisoned {
		return MessageNametag{}, ErrHandshakeStatePoisoned
	}
	return h.hs.ss.toMessageNametag(), nil
}

// Authcode derives the 5-decimal-digit confirmation code from the
// current handshake hash. Both parties must call this only after
// processing the first two handshake messages (spec.md §4.7); it
// returns the same digits on both sides because h is a pure function of
// the messages exchanged so far.
func (h *Handshake) Authcode() (string, error) {
	if h.hs.poisoned {
		return "", ErrHandshakeStatePoisoned
	}
	n := new(big.Int).SetBytes(h.hs.ss.h[:])
	n.Mod(n, big.NewInt(100_000_000))
	return fmt.Sprintf("%08d", n)[:5], nil
}

// Step advances the handshake by one message, either writing or
// reading depending on the pattern's declared direction for the
// current message index.
func (h *Handshake) Step(in StepInput) (*StepResult, error) {
	if h.hs.poisoned {
		return nil, ErrHandshakeStatePoisoned
	}
	if h.hs.msgIdx >= len(h.hs.pattern.Messages) {
		return &StepResult{}, nil
	}

	dir := h.hs.pattern.Messages[h.hs.msgIdx].Direction
	reading, writing := h.hs.getReadingWritingState(dir)

	result := &StepResult{}

	switch {
	case writing:
		protocolID, err := ProtocolIDForPattern(h.hs.pattern.Name)
		if err != nil {
			return nil, err
		}
		keys, err := h.hs.processWriteTokens()
		if err != nil {
			return nil, err
		}
		transportMessage, err := h.processOutboundPayload(in.TransportMessage, in.MessageNametag)
		if err != nil {
			h.hs.poisoned = true
			return nil, err
		}
		result.PayloadV2 = &PayloadV2{
			MessageNametag:   in.MessageNametag,
			ProtocolId:       protocolID,
			HandshakeKeys:    keys,
			TransportMessage: transportMessage,
		}

	case reading:
		if in.ReadPayload == nil {
			return nil, ErrInvalidKey
		}
		if in.ReadPayload.MessageNametag != in.MessageNametag {
			return nil, &MessageNametagError{Expected: in.MessageNametag, Actual: in.ReadPayload.MessageNametag}
		}
		if err := h.hs.processReadTokens(in.ReadPayload.HandshakeKeys); err != nil {
			return nil, err
		}
		transportMessage, err := h.processInboundPayload(in.ReadPayload.TransportMessage, in.MessageNametag)
		if err != nil {
			h.hs.poisoned = true
			return nil, err
		}
		result.TransportMessage = transportMessage

	default:
		return nil, ErrInvalidPattern
	}

	h.hs.msgIdx++
	return result, nil
}

func (h *Handshake) processOutboundPayload(transportMessage []byte, nametag MessageNametag) ([]byte, error) {
	padded := pkcs7Pad(transportMessage, NoisePaddingBlockSize)
	return h.hs.ss.encryptAndHash(padded, nametag[:])
}

func (h *Handshake) processInboundPayload(transportMessage []byte, nametag MessageNametag) ([]byte, error) {
	padded, err := h.hs.ss.decryptAndHash(transportMessage, nametag[:])
	if err != nil {
		return nil, err
	}
	return pkcs7Unpad(padded, NoisePaddingBlockSize)
}

// FinalizeHandshake splits the symmetric state into the two transport
// CipherStates and derives the two nametag-buffer secrets. It is
// idempotent: calling it again after success returns the cached result.
func (h *Handshake) FinalizeHandshake() (*HandshakeResult, error) {
	if h.IsComplete() {
		return h.result, nil
	}
	if h.hs.poisoned {
		return nil, ErrHandshakeStatePoisoned
	}
	if h.hs.msgIdx != len(h.hs.pattern.Messages) {
		return nil, ErrHandshakeNotComplete
	}
	if h.hs.rs == nil {
		return nil, ErrHandshakeNotComplete
	}

	cs1, cs2 := h.hs.ss.split()
	secrets := deriveKeys(h.hs.ss.ck, nametagSecretsLabel, 2)
	nms1, nms2 := secrets[0], secrets[1]

	result := &HandshakeResult{h: h.hs.ss.h, rs: *h.hs.rs}
	if h.hs.initiator {
		result.csOutbound = cs1
		result.csInbound = cs2
		result.nametagsOutbound = NewMessageNametagBuffer(nms2)
		result.nametagsInbound = NewMessageNametagBuffer(nms1)
	} else {
		result.csOutbound = cs2
		result.csInbound = cs1
		result.nametagsOutbound = NewMessageNametagBuffer(nms1)
		result.nametagsInbound = NewMessageNametagBuffer(nms2)
	}

	h.result = result
	return result, nil
}

// HandshakeResult is the secure channel produced by a completed
// Handshake: two CipherStates and two nametag buffers, plus the
// remote static key and transcript hash for channel-binding uses.
type HandshakeResult struct {
	csOutbound CipherState
	csInbound  CipherState

	nametagsOutbound *MessageNametagBuffer
	nametagsInbound  *MessageNametagBuffer

	rs [KeySize]byte
	h  [HashSize]byte
}

// RemoteStaticKey returns the peer's static public key.
func (r *HandshakeResult) RemoteStaticKey() [KeySize]byte {
	return r.rs
}

// HandshakeHash returns the final transcript hash, for out-of-band
// channel-binding uses.
func (r *HandshakeResult) HandshakeHash() [HashSize]byte {
	return r.h
}

// WriteMessage pops the next outbound nametag, pads and encrypts
// message, and returns the wire payload. ProtocolId is always
// ProtocolIDNone for post-handshake traffic, per spec.md §9.
//
// The CipherState's nonce is pinned to the nametag's own counter rather
// than left to its internal auto-increment: both peers derive nametags
// from the same secret+counter, so pinning the AEAD nonce to that
// counter keeps sender and receiver nonces in lockstep across dropped
// messages, which an independently incrementing nonce could not survive.
func (r *HandshakeResult) WriteMessage(message []byte) (*PayloadV2, error) {
	counter := r.nametagsOutbound.Counter()
	tag := r.nametagsOutbound.Pop()
	r.csOutbound.SetNonceValue(counter)
	padded := pkcs7Pad(message, NoisePaddingBlockSize)
	ciphertext, err := r.csOutbound.EncryptWithAd(tag[:], padded)
	if err != nil {
		return nil, err
	}
	return &PayloadV2{
		MessageNametag:   tag,
		ProtocolId:       ProtocolIDNone,
		TransportMessage: ciphertext,
	}, nil
}

// ReadMessage verifies the payload's nametag against the inbound
// buffer, decrypts and unpads on success, and consumes the matched
// slot. ErrNametagNotFound or *OutOfOrderError leaves the buffer
// untouched so the caller can retry or resynchronize with Delete.
func (r *HandshakeResult) ReadMessage(p *PayloadV2) ([]byte, error) {
	if err := r.nametagsInbound.CheckNametag(p.MessageNametag); err != nil {
		return nil, err
	}
	r.csInbound.SetNonceValue(r.nametagsInbound.Counter())
	padded, err := r.csInbound.DecryptWithAd(p.MessageNametag[:], p.TransportMessage)
	if err != nil {
		return nil, err
	}
	message, err := pkcs7Unpad(padded, NoisePaddingBlockSize)
	if err != nil {
		return nil, err
	}
	r.nametagsInbound.Delete(1)
	return message, nil
}

// NametagsInbound exposes the inbound buffer for out-of-band
// resynchronization after an *OutOfOrderError (spec.md §4.9/§8).
func (r *HandshakeResult) NametagsInbound() *MessageNametagBuffer {
	return r.nametagsInbound
}

// NametagsOutbound exposes the outbound buffer, primarily for tests.
func (r *HandshakeResult) NametagsOutbound() *MessageNametagBuffer {
	return r.nametagsOutbound
}
