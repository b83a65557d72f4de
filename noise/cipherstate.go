package noise

// CipherState holds an AEAD key and the nonce it advances on every
// successful encrypt/decrypt. An empty (all-zero) key is the sentinel
// for "no encryption yet" — EncryptWithAd/DecryptWithAd become identity
// functions and the nonce is left untouched, matching spec.md §4.3.
type CipherState struct {
	k [KeySize]byte
	n Nonce
}

// newCipherState builds a CipherState from a key. Passing the
// all-zero key produces the empty sentinel.
func newCipherState(key [KeySize]byte) CipherState {
	return CipherState{k: key, n: newNonce()}
}

// HasKey reports whether the cipher state holds a non-empty key.
func (c *CipherState) HasKey() bool {
	var zero [KeySize]byte
	return c.k != zero
}

// EncryptWithAd encrypts plaintext under the current key and nonce,
// then advances the nonce. With an empty key it returns plaintext
// unchanged and does not touch the nonce.
func (c *CipherState) EncryptWithAd(ad, plaintext []byte) ([]byte, error) {
	if !c.HasKey() {
		return plaintext, nil
	}
	if err := c.n.assertValid(); err != nil {
		return nil, err
	}
	ciphertext := aeadEncrypt(c.k, c.n.bytes(), ad, plaintext)
	if err := c.n.increment(); err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// DecryptWithAd decrypts ciphertext under the current key and nonce,
// then advances the nonce. With an empty key it returns ciphertext
// unchanged and does not touch the nonce. On AEAD failure the nonce is
// left untouched and ErrAuthenticationFailure is returned.
func (c *CipherState) DecryptWithAd(ad, ciphertext []byte) ([]byte, error) {
	if !c.HasKey() {
		return ciphertext, nil
	}
	if err := c.n.assertValid(); err != nil {
		return nil, err
	}
	plaintext, err := aeadDecrypt(c.k, c.n.bytes(), ad, ciphertext)
	if err != nil {
		return nil, err
	}
	if err := c.n.increment(); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// NonceValue exposes the current counter, primarily so tests and the
// nonce-exhaustion scenario (spec.md §8, S6) can seed/inspect it.
func (c *CipherState) NonceValue() uint64 {
	return c.n.value()
}

// SetNonceValue forcibly sets the counter; used to test nonce
// exhaustion without performing 2^32 real encryptions.
func (c *CipherState) SetNonceValue(v uint64) {
	c.n.counter = v
}
