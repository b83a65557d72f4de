package noise

import "encoding/binary"

// nonceMax matches the reference implementation's hard cap: a 32-bit
// counter space, even though the counter itself is stored in 64 bits.
const nonceMax uint64 = 1 << 32

// NonceMax exposes the cap for callers that need to drive a
// CipherState or MessageNametagBuffer to exhaustion in tests without
// pushing 2^32 real messages through it.
const NonceMax = nonceMax

// Nonce is the 64-bit counter each CipherState advances on every
// successful encrypt/decrypt. Its wire form is a 12-byte little-endian
// ChaCha20-Poly1305 IETF nonce with the 32-bit counter in the first 4
// bytes and 8 trailing zero bytes.
type Nonce struct {
	counter uint64
}

// newNonce returns a zeroed Nonce.
func newNonce() Nonce {
	return Nonce{}
}

// value returns the current counter value.
func (n Nonce) value() uint64 {
	return n.counter
}

// assertValid fails once the counter has reached the cap.
func (n Nonce) assertValid() error {
	if n.counter >= nonceMax {
		return ErrNonceExhausted
	}
	return nil
}

// increment advances the counter by one, returning an error instead of
// wrapping if the cap has already been reached.
func (n *Nonce) increment() error {
	if n.counter >= nonceMax {
		return ErrNonceExhausted
	}
	n.counter++
	return nil
}

// bytes renders the nonce in its 12-byte wire form.
func (n Nonce) bytes() [12]byte {
	var out [12]byte
	binary.LittleEndian.PutUint32(out[0:4], uint32(n.counter))
	return out
}
