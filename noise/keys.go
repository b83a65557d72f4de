package noise

// KeyPair is an X25519 static or ephemeral keypair. Public is always
// X25519(Private, basepoint); keypairFromPrivate and generateKeypair
// are the only constructors and both enforce the invariant.
type KeyPair struct {
	Private [KeySize]byte
	Public  [KeySize]byte
}

// GenerateKeypair produces a fresh X25519 keypair from a CSPRNG.
func GenerateKeypair() (KeyPair, error) {
	return generateKeypair()
}

// KeypairFromPrivate derives the public half of a keypair from a
// caller-supplied private scalar.
func KeypairFromPrivate(priv [KeySize]byte) (KeyPair, error) {
	return keypairFromPrivate(priv)
}

// keyFlag tags a NoisePublicKey as carrying a plaintext X coordinate
// (flagPlain) or a ChaChaPoly ciphertext of one (flagEncrypted).
type keyFlag byte

const (
	flagPlain     keyFlag = 0
	flagEncrypted keyFlag = 1
)

// NoisePublicKey is a public key as carried on the wire during a
// handshake: either the raw 32-byte X coordinate, or its ciphertext
// plus a 16-byte Poly1305 tag when handshake encryption is active.
type NoisePublicKey struct {
	flag  keyFlag
	bytes []byte
}

// newPlainPublicKey wraps a plaintext 32-byte public key.
func newPlainPublicKey(pub [KeySize]byte) NoisePublicKey {
	b := make([]byte, KeySize)
	copy(b, pub[:])
	return NoisePublicKey{flag: flagPlain, bytes: b}
}

// newEncryptedPublicKey wraps a ciphertext-plus-tag public key.
func newEncryptedPublicKey(ciphertext []byte) NoisePublicKey {
	b := make([]byte, len(ciphertext))
	copy(b, ciphertext)
	return NoisePublicKey{flag: flagEncrypted, bytes: b}
}

// IsEncrypted reports whether the key is carried as ciphertext.
func (k NoisePublicKey) IsEncrypted() bool {
	return k.flag == flagEncrypted
}

// Plain returns the 32-byte key directly; it is only meaningful when
// IsEncrypted() is false.
func (k NoisePublicKey) Plain() [KeySize]byte {
	var out [KeySize]byte
	copy(out[:], k.bytes)
	return out
}

// Serialize renders flag_byte || bytes.
func (k NoisePublicKey) Serialize() []byte {
	out := make([]byte, 0, 1+len(k.bytes))
	out = append(out, byte(k.flag))
	out = append(out, k.bytes...)
	return out
}

// DeserializeNoisePublicKey parses flag_byte || bytes, rejecting any
// flag outside {0,1} and any length that doesn't match the flag.
func DeserializeNoisePublicKey(b []byte) (NoisePublicKey, int, error) {
	if len(b) < 1 {
		return NoisePublicKey{}, 0, ErrInvalidKey
	}
	flag := keyFlag(b[0])
	switch flag {
	case flagPlain:
		if len(b) < 1+KeySize {
			return NoisePublicKey{}, 0, ErrInvalidKey
		}
		return newPlainPublicKey(toKeySize(b[1 : 1+KeySize])), 1 + KeySize, nil
	case flagEncrypted:
		encSize := KeySize + TagSize
		if len(b) < 1+encSize {
			return NoisePublicKey{}, 0, ErrInvalidKey
		}
		return newEncryptedPublicKey(b[1 : 1+encSize]), 1 + encSize, nil
	default:
		return NoisePublicKey{}, 0, ErrInvalidKey
	}
}

func toKeySize(b []byte) [KeySize]byte {
	var out [KeySize]byte
	copy(out[:], b)
	return out
}
