package noise

// HandshakeState interprets a HandshakePattern's token streams,
// mutating its embedded SymmetricState (and thus its CipherState) as
// it goes. A HandshakeState is exclusively owned by the Handshake
// driver that creates it; finalize (see handshake.go) consumes it.
type HandshakeState struct {
	s   *KeyPair
	e   *KeyPair
	rs  *[KeySize]byte
	re  *[KeySize]byte
	ss  SymmetricState
	initiator bool
	pattern   HandshakePattern
	msgIdx    int
	psk       []byte

	poisoned bool
}

// newHandshakeState initializes the symmetric state from the pattern
// name, mixes the prologue, and processes any declared pre-messages.
// preMessageKeys supplies, in pre-message-token order, the raw 32-byte
// public keys exchanged out-of-band (e.g. via QR); tokens that are the
// local party's own key are taken from s/e (which must be set) instead
// of consumed from this list.
func newHandshakeState(pattern HandshakePattern, initiator bool, prologue []byte, s, e *KeyPair, psk []byte, preMessageKeys [][KeySize]byte) (*HandshakeState, error) {
	hs := &HandshakeState{
		s:         s,
		e:         e,
		ss:        initSymmetricState(pattern.Name),
		initiator: initiator,
		pattern:   pattern,
		psk:       psk,
	}
	hs.ss.mixHash(prologue)

	if err := hs.processPreMessages(preMessageKeys); err != nil {
		hs.poisoned = true
		return nil, err
	}
	return hs, nil
}

// getReadingWritingState maps (initiator, direction) to which role the
// local party plays for that message, per spec.md §4.5.
func (hs *HandshakeState) getReadingWritingState(dir Direction) (reading, writing bool) {
	switch {
	case hs.initiator && dir == DirectionToResponder:
		return false, true
	case hs.initiator && dir == DirectionToInitiator:
		return true, false
	case !hs.initiator && dir == DirectionToResponder:
		return true, false
	default: // !hs.initiator && dir == DirectionToInitiator
		return false, true
	}
}

// processPreMessages walks the declared pre-message pattern, consuming
// one entry of preMessageKeys per token that belongs to the remote
// party and validating that the local party's own key is available for
// tokens that are its own.
func (hs *HandshakeState) processPreMessages(preMessageKeys [][KeySize]byte) error {
	idx := 0
	for _, pm := range hs.pattern.PreMessages {
		reading, writing := hs.getReadingWritingState(pm.Direction)
		for _, tok := range pm.Tokens {
			if tok != TokenE && tok != TokenS {
				return ErrInvalidPattern
			}
			switch {
			case writing:
				pub, err := hs.ownPreMessageKey(tok)
				if err != nil {
					return err
				}
				hs.ss.mixHash(pub[:])
				if hs.pattern.IsPSK() {
					hs.ss.mixKey(pub[:])
				}
			case reading:
				if idx >= len(preMessageKeys) {
					return ErrInvalidPattern
				}
				pub := preMessageKeys[idx]
				idx++
				hs.setRemoteKey(tok, pub)
				hs.ss.mixHash(pub[:])
				if hs.pattern.IsPSK() {
					hs.ss.mixKey(pub[:])
				}
			default:
				return ErrInvalidPattern
			}
		}
	}
	return nil
}

func (hs *HandshakeState) ownPreMessageKey(tok Token) ([KeySize]byte, error) {
	switch tok {
	case TokenE:
		if hs.e == nil {
			return [KeySize]byte{}, ErrInvalidKey
		}
		return hs.e.Public, nil
	case TokenS:
		if hs.s == nil {
			return [KeySize]byte{}, ErrInvalidKey
		}
		return hs.s.Public, nil
	default:
		return [KeySize]byte{}, ErrInvalidPattern
	}
}

func (hs *HandshakeState) setRemoteKey(tok Token, pub [KeySize]byte) {
	switch tok {
	case TokenE:
		hs.re = &pub
	case TokenS:
		hs.rs = &pub
	}
}

// processWriteTokens runs the writing side of the current
// message pattern, returning the handshake keys to place on the wire.
func (hs *HandshakeState) processWriteTokens() ([]NoisePublicKey, error) {
	if hs.poisoned {
		return nil, ErrHandshakeStatePoisoned
	}
	tokens := hs.pattern.Messages[hs.msgIdx].Tokens
	out := make([]NoisePublicKey, 0, len(tokens))
	for _, tok := range tokens {
		pk, err := hs.writeToken(tok)
		if err != nil {
			hs.poisoned = true
			return nil, err
		}
		if pk != nil {
			out = append(out, *pk)
		}
	}
	return out, nil
}

// processReadTokens runs the reading side of the current message
// pattern against the peer's handshake keys.
func (hs *HandshakeState) processReadTokens(keys []NoisePublicKey) error {
	if hs.poisoned {
		return ErrHandshakeStatePoisoned
	}
	tokens := hs.pattern.Messages[hs.msgIdx].Tokens
	idx := 0
	for _, tok := range tokens {
		consumed, err := hs.readToken(tok, keys, idx)
		if err != nil {
			hs.poisoned = true
			return err
		}
		idx += consumed
	}
	return nil
}

func (hs *HandshakeState) writeToken(tok Token) (*NoisePublicKey, error) {
	switch tok {
	case TokenE:
		kp, err := generateKeypair()
		if err != nil {
			return nil, err
		}
		hs.e = &kp
		hs.ss.mixHash(kp.Public[:])
		if hs.pattern.IsPSK() {
			hs.ss.mixKey(kp.Public[:])
		}
		pk := newPlainPublicKey(kp.Public)
		return &pk, nil
	case TokenS:
		if hs.s == nil {
			return nil, ErrInvalidKey
		}
		enc, err := hs.ss.encryptAndHash(hs.s.Public[:], nil)
		if err != nil {
			return nil, err
		}
		var pk NoisePublicKey
		if len(enc) > KeySize {
			pk = newEncryptedPublicKey(enc)
		} else {
			pk = newPlainPublicKey(toKeySize(enc))
		}
		return &pk, nil
	case TokenEE:
		if err := hs.requireKeys(hs.e, hs.re); err != nil {
			return nil, err
		}
		hs.ss.mixKey(dhSlice(hs.e.Private, *hs.re))
		return nil, nil
	case TokenES:
		if hs.initiator {
			if err := hs.requireKeys(hs.e, hs.rs); err != nil {
				return nil, err
			}
			hs.ss.mixKey(dhSlice(hs.e.Private, *hs.rs))
		} else {
			if hs.s == nil || hs.re == nil {
				return nil, ErrInvalidKey
			}
			hs.ss.mixKey(dhSlice(hs.s.Private, *hs.re))
		}
		return nil, nil
	case TokenSE:
		if hs.initiator {
			if hs.s == nil || hs.re == nil {
				return nil, ErrInvalidKey
			}
			hs.ss.mixKey(dhSlice(hs.s.Private, *hs.re))
		} else {
			if err := hs.requireKeys(hs.e, hs.rs); err != nil {
				return nil, err
			}
			hs.ss.mixKey(dhSlice(hs.e.Private, *hs.rs))
		}
		return nil, nil
	case TokenSS:
		if hs.s == nil || hs.rs == nil {
			return nil, ErrInvalidKey
		}
		hs.ss.mixKey(dhSlice(hs.s.Private, *hs.rs))
		return nil, nil
	case TokenPSK:
		hs.ss.mixKeyAndHash(hs.psk)
		return nil, nil
	default:
		return nil, ErrInvalidPattern
	}
}

// readToken processes one token from the reading side, returning how
// many entries of keys it consumed (0 or 1).
func (hs *HandshakeState) readToken(tok Token, keys []NoisePublicKey, idx int) (int, error) {
	switch tok {
	case TokenE:
		if idx >= len(keys) {
			return 0, ErrInvalidKey
		}
		key := keys[idx]
		if key.IsEncrypted() {
			pt, err := hs.ss.decryptAndHash(key.bytes, nil)
			if err != nil {
				return 0, err
			}
			if len(pt) != KeySize {
				return 0, ErrInvalidKey
			}
			re := toKeySize(pt)
			hs.re = &re
		} else {
			re := key.Plain()
			hs.ss.mixHash(re[:])
			hs.re = &re
		}
		if hs.pattern.IsPSK() {
			hs.ss.mixKey(hs.re[:])
		}
		return 1, nil
	case TokenS:
		if idx >= len(keys) {
			return 0, ErrInvalidKey
		}
		key := keys[idx]
		pt, err := hs.ss.decryptAndHash(key.bytes, nil)
		if err != nil {
			return 0, err
		}
		if len(pt) != KeySize {
			return 0, ErrInvalidKey
		}
		rs := toKeySize(pt)
		hs.rs = &rs
		return 1, nil
	case TokenEE:
		if err := hs.requireKeys(hs.e, hs.re); err != nil {
			return 0, err
		}
		hs.ss.mixKey(dhSlice(hs.e.Private, *hs.re))
		return 0, nil
	case TokenES:
		if hs.initiator {
			if err := hs.requireKeys(hs.e, hs.rs); err != nil {
				return 0, err
			}
			hs.ss.mixKey(dhSlice(hs.e.Private, *hs.rs))
		} else {
			if hs.s == nil || hs.re == nil {
				return 0, ErrInvalidKey
			}
			hs.ss.mixKey(dhSlice(hs.s.Private, *hs.re))
		}
		return 0, nil
	case TokenSE:
		if hs.initiator {
			if hs.s == nil || hs.re == nil {
				return 0, ErrInvalidKey
			}
			hs.ss.mixKey(dhSlice(hs.s.Private, *hs.re))
		} else {
			if err := hs.requireKeys(hs.e, hs.rs); err != nil {
				return 0, err
			}
			hs.ss.mixKey(dhSlice(hs.e.Private, *hs.rs))
		}
		return 0, nil
	case TokenSS:
		if hs.s == nil || hs.rs == nil {
			return 0, ErrInvalidKey
		}
		hs.ss.mixKey(dhSlice(hs.s.Private, *hs.rs))
		return 0, nil
	case TokenPSK:
		hs.ss.mixKeyAndHash(hs.psk)
		return 0, nil
	default:
		return 0, ErrInvalidPattern
	}
}

func (hs *HandshakeState) requireKeys(local *KeyPair, remote *[KeySize]byte) error {
	if local == nil || remote == nil {
		return ErrInvalidKey
	}
	return nil
}

// equals compares two HandshakeStates' transcript state, used only by
// tests to assert both parties agree before finalizing (see SPEC_FULL.md §9).
func (hs *HandshakeState) equals(other *HandshakeState) bool {
	return hs.ss.ck == other.ss.ck && hs.ss.h == other.ss.h
}
