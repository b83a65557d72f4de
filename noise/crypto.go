package noise

import (
	"crypto/rand"
	"crypto/sha256"
	"hash"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the length in bytes of an X25519 key (private or public).
	KeySize = 32
	// HashSize is the length in bytes of a SHA-256 digest.
	HashSize = 32
	// TagSize is the length in bytes of a Poly1305 authentication tag.
	TagSize = chacha20poly1305.Overhead
)

func sha256Sum(b []byte) [HashSize]byte {
	return sha256.Sum256(b)
}

// sha256New adapts crypto/sha256 to the hash.Hash factory hkdf.New expects.
func sha256New() hash.Hash {
	return sha256.New()
}

// deriveKeys implements the spec's fixed HKDF-SHA256 construction: PRK =
// HMAC-SHA256(ck, ikm), followed by chained HMAC-SHA256 expansion with an
// empty info string. It always yields 1, 2, or 3 chained 32-byte outputs.
func deriveKeys(chainingKey [HashSize]byte, ikm []byte, n int) [][HashSize]byte {
	if n < 1 || n > 3 {
		panic("noise: deriveKeys supports only 1-3 outputs")
	}
	reader := hkdf.New(sha256New, ikm, chainingKey[:], nil)
	out := make([][HashSize]byte, n)
	for i := range out {
		// io.ReadFull cannot fail here: HKDF-SHA256 can emit up to 255*32
		// bytes and we only ever ask for 3.
		_, _ = io.ReadFull(reader, out[i][:])
	}
	return out
}

// aeadEncrypt performs ChaCha20-Poly1305 IETF encryption.
func aeadEncrypt(key [KeySize]byte, nonce [12]byte, ad, plaintext []byte) []byte {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		// key is guaranteed to be chacha20poly1305.KeySize bytes.
		panic(err)
	}
	return aead.Seal(nil, nonce[:], plaintext, ad)
}

// aeadDecrypt performs ChaCha20-Poly1305 IETF decryption, returning
// ErrAuthenticationFailure on tag mismatch.
func aeadDecrypt(key [KeySize]byte, nonce [12]byte, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		panic(err)
	}
	plaintext, err := aead.Open(nil, nonce[:], ciphertext, ad)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

// dh performs X25519 and, on failure (e.g. a low-order public key),
// returns 32 zero bytes rather than panicking: the resulting chain is
// useless but the state machine keeps running, matching spec.md §4.1.
func dh(priv, pub [KeySize]byte) [KeySize]byte {
	var out [KeySize]byte
	shared, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return out
	}
	copy(out[:], shared)
	return out
}

// dhSlice is dh with the result returned as a slice, for callers that
// need []byte rather than a fixed-size array.
func dhSlice(priv, pub [KeySize]byte) []byte {
	out := dh(priv, pub)
	return out[:]
}

// generateKeypair produces a fresh X25519 keypair from a CSPRNG.
func generateKeypair() (KeyPair, error) {
	var priv [KeySize]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return KeyPair{}, err
	}
	return keypairFromPrivate(priv)
}

// keypairFromPrivate derives the public half of a keypair from its
// private scalar via the X25519 base point.
func keypairFromPrivate(priv [KeySize]byte) (KeyPair, error) {
	pubBytes, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, ErrInvalidKey
	}
	var pub [KeySize]byte
	copy(pub[:], pubBytes)
	return KeyPair{Private: priv, Public: pub}, nil
}

// randomBytes reads n bytes of CSPRNG output, used for the commitment
// randomness r/s.
func randomBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CommitPublicKey computes SHA-256(pubkey || r), binding a party to a
// static key it discloses later by revealing r. Callers outside this
// package use it to build and verify WakuPairing's static-key
// commitments (spec.md §6.5).
func CommitPublicKey(pubkey [KeySize]byte, r []byte) [HashSize]byte {
	return commitPublicKey(pubkey, r)
}

// RandomBytes reads n bytes of CSPRNG output, exported for callers
// that need fresh commitment randomness outside this package.
func RandomBytes(n int) ([]byte, error) {
	return randomBytes(n)
}

// commitPublicKey computes SHA-256(pubkey || r), binding a party to a
// static key it discloses later by revealing r.
func commitPublicKey(pubkey [KeySize]byte, r []byte) [HashSize]byte {
	h := hmacFreeHash()
	h.Write(pubkey[:])
	h.Write(r)
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hmacFreeHash() hash.Hash {
	return sha256.New()
}
