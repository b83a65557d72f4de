package noise

// SymmetricState carries the chaining key and running handshake hash
// that accumulate every DH output and every public byte exchanged, plus
// the CipherState derived from the most recent mixKey/mixKeyAndHash.
type SymmetricState struct {
	ck [HashSize]byte
	h  [HashSize]byte
	cs CipherState
}

// initSymmetricState implements spec.md §3's SymmetricState
// initialization: h = name padded/hashed to 32 bytes, ck = h, cs empty.
func initSymmetricState(patternName string) SymmetricState {
	var h [HashSize]byte
	if len(patternName) <= HashSize {
		copy(h[:], patternName)
	} else {
		h = sha256Sum([]byte(patternName))
	}
	return SymmetricState{
		ck: h,
		h:  h,
		cs: newCipherState([KeySize]byte{}),
	}
}

// mixKey derives a new chaining key and cipher key from the input key
// material, replacing the CipherState with a freshly keyed, zero-nonce
// one.
func (s *SymmetricState) mixKey(ikm []byte) {
	out := deriveKeys(s.ck, ikm, 2)
	s.ck = out[0]
	s.cs = newCipherState(out[1])
}

// mixHash folds data into the running transcript hash.
func (s *SymmetricState) mixHash(data []byte) {
	buf := make([]byte, 0, HashSize+len(data))
	buf = append(buf, s.h[:]...)
	buf = append(buf, data...)
	s.h = sha256Sum(buf)
}

// mixKeyAndHash is mixKey and mixHash combined via a 3-way HKDF split,
// used for the psk token.
func (s *SymmetricState) mixKeyAndHash(ikm []byte) {
	out := deriveKeys(s.ck, ikm, 3)
	s.ck = out[0]
	s.mixHash(out[1][:])
	s.cs = newCipherState(out[2])
}

// encryptAndHash encrypts under the embedded CipherState with the
// running hash as associated data, then mixes the ciphertext (not the
// plaintext) into the hash.
func (s *SymmetricState) encryptAndHash(plaintext, extraAd []byte) ([]byte, error) {
	ad := append(append([]byte{}, s.h[:]...), extraAd...)
	ciphertext, err := s.cs.EncryptWithAd(ad, plaintext)
	if err != nil {
		return nil, err
	}
	s.mixHash(ciphertext)
	return ciphertext, nil
}

// decryptAndHash mirrors encryptAndHash: after a successful decryption
// the ciphertext (not the plaintext) is mixed into the hash, per
// spec.md §4.4. On failure the hash is left unchanged.
func (s *SymmetricState) decryptAndHash(ciphertext, extraAd []byte) ([]byte, error) {
	ad := append(append([]byte{}, s.h[:]...), extraAd...)
	plaintext, err := s.cs.DecryptWithAd(ad, ciphertext)
	if err != nil {
		return nil, err
	}
	s.mixHash(ciphertext)
	return plaintext, nil
}

// split derives the two transport CipherStates from the chaining key.
func (s *SymmetricState) split() (CipherState, CipherState) {
	out := deriveKeys(s.ck, nil, 2)
	return newCipherState(out[0]), newCipherState(out[1])
}

// toMessageNametag derives the 16-byte nametag snapshot used between
// handshake steps: HKDF(ck, h)[0:16].
func (s *SymmetricState) toMessageNametag() MessageNametag {
	out := deriveKeys(s.ck, s.h[:], 1)
	var tag MessageNametag
	copy(tag[:], out[0][:MessageNametagLength])
	return tag
}
