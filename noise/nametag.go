package noise

// MessageNametagLength is the size in bytes of a message nametag.
const MessageNametagLength = 16

// MessageNametagBufferSize is the number of precomputed future
// nametags the ring holds at once.
const MessageNametagBufferSize = 50

// MessageNametag addresses and orders a single post-handshake message
// over a lossy, unordered transport.
type MessageNametag [MessageNametagLength]byte

// BytesToMessageNametag copies (zero-padding/truncating) b into a
// MessageNametag.
func BytesToMessageNametag(b []byte) MessageNametag {
	var tag MessageNametag
	copy(tag[:], b)
	return tag
}

// MessageNametagBuffer is a fixed-size ring of expected nametags,
// derived from a shared secret via HKDF-SHA256. It is adapted from the
// sliding replay-window design in the teacher's antireplay package: the
// same fixed-capacity circular-array technique, but storing precomputed
// future tag values instead of a seen-bitmap, since the buffer must
// answer "what comes next" rather than merely "have I seen this".
type MessageNametagBuffer struct {
	secret  [HashSize]byte
	hasSecret bool
	counter uint64
	ring    [MessageNametagBufferSize]MessageNametag
}

// NewMessageNametagBuffer builds a buffer from a post-handshake secret
// and fills the ring starting at counter 0.
func NewMessageNametagBuffer(secret [HashSize]byte) *MessageNametagBuffer {
	b := &MessageNametagBuffer{secret: secret, hasSecret: true}
	b.fill()
	return b
}

// newEmptyMessageNametagBuffer is the pre-finalize sentinel: Pop always
// returns the zero tag and CheckNametag never matches, per spec.md §4.9.
func newEmptyMessageNametagBuffer() *MessageNametagBuffer {
	return &MessageNametagBuffer{}
}

func (b *MessageNametagBuffer) fill() {
	if !b.hasSecret {
		return
	}
	for i := range b.ring {
		b.ring[i] = b.deriveTag(b.counter + uint64(i))
	}
}

func (b *MessageNametagBuffer) deriveTag(counter uint64) MessageNametag {
	var counterBytes [8]byte
	for i := 0; i < 8; i++ {
		counterBytes[i] = byte(counter >> (8 * i))
	}
	out := deriveKeys(b.secret, counterBytes[:], 1)
	return BytesToMessageNametag(out[0][:MessageNametagLength])
}

// Counter returns the counter value backing the current head slot.
// WriteMessage/ReadMessage use this to keep the paired CipherState's
// nonce in lockstep with the nametag sequence position instead of its
// own independent increment, so that a dropped message never
// desynchronizes the AEAD nonce the way an internally auto-incrementing
// nonce would (see DESIGN.md).
func (b *MessageNametagBuffer) Counter() uint64 {
	return b.counter
}

// SetCounter forcibly sets the counter and refills the ring from it,
// used to test nonce exhaustion (spec.md §8, S6) without driving 2^32
// real messages through WriteMessage/ReadMessage.
func (b *MessageNametagBuffer) SetCounter(v uint64) {
	b.counter = v
	b.fill()
}

// Pop returns the head nametag, then rotates the ring left by one and
// appends a freshly derived tail tag.
func (b *MessageNametagBuffer) Pop() MessageNametag {
	head := b.ring[0]
	b.rotate(1)
	return head
}

// rotate shifts the ring left by n slots, regenerating n new tail
// entries from the advancing counter.
func (b *MessageNametagBuffer) rotate(n int) {
	if n <= 0 {
		return
	}
	b.counter += uint64(n)
	if n > MessageNametagBufferSize {
		n = MessageNametagBufferSize
	}
	copy(b.ring[:], b.ring[n:])
	if b.hasSecret {
		for i := MessageNametagBufferSize - n; i < MessageNametagBufferSize; i++ {
			b.ring[i] = b.deriveTag(b.counter + uint64(i))
		}
	}
}

// CheckNametag reports where tag sits in the ring: nil if at the head,
// *OutOfOrderError if found later, ErrNametagNotFound if absent.
func (b *MessageNametagBuffer) CheckNametag(tag MessageNametag) error {
	if !b.hasSecret {
		return ErrNametagNotFound
	}
	for i, candidate := range b.ring {
		if candidate == tag {
			if i == 0 {
				return nil
			}
			return &OutOfOrderError{Skipped: i}
		}
	}
	return ErrNametagNotFound
}

// Delete rotates the head forward by n slots, permanently discarding
// the skipped entries and regenerating n new tail tags. Callers use
// this to resynchronize after an OutOfOrderError.
func (b *MessageNametagBuffer) Delete(n int) {
	b.rotate(n)
}
