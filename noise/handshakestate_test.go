package noise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// driveWakuPairing runs the full 3-message WakuPairing exchange between
// two HandshakeStates and asserts both sides agree on (ck, h) after
// every message, mirroring the reference choreography's Alice/Bob roles.
func driveWakuPairing(t *testing.T) (alice, bob *HandshakeState, aliceS, bobS KeyPair) {
	t.Helper()

	bobE, err := generateKeypair()
	require.NoError(t, err)
	aliceS, err = generateKeypair()
	require.NoError(t, err)
	bobS, err = generateKeypair()
	require.NoError(t, err)
	aliceE, err := generateKeypair()
	require.NoError(t, err)

	prologue := []byte("wakunoise-pairing-prologue")
	preMessageKeys := [][KeySize]byte{bobE.Public}

	alice, err = newHandshakeState(PatternWakuPairing, true, prologue, &aliceS, &aliceE, nil, preMessageKeys)
	require.NoError(t, err)
	bob, err = newHandshakeState(PatternWakuPairing, false, prologue, &bobS, &bobE, nil, preMessageKeys)
	require.NoError(t, err)

	require.True(t, alice.equals(bob), "both sides must agree after processing the pre-message")

	// Message 1 (-> , "to responder"): Alice writes (e, ee), Bob reads.
	aliceKeys1, err := alice.processWriteTokens()
	require.NoError(t, err)
	alice.msgIdx++
	require.NoError(t, bob.processReadTokens(aliceKeys1))
	bob.msgIdx++
	require.True(t, alice.equals(bob))

	// Message 2 (<- , "to initiator"): Bob writes (s, es), Alice reads.
	bobKeys, err := bob.processWriteTokens()
	require.NoError(t, err)
	bob.msgIdx++
	require.NoError(t, alice.processReadTokens(bobKeys))
	alice.msgIdx++
	require.True(t, alice.equals(bob))
	require.Equal(t, bobS.Public, *alice.rs)

	// Message 3 (-> , "to responder"): Alice writes (s, se, ss), Bob reads.
	aliceKeys2, err := alice.processWriteTokens()
	require.NoError(t, err)
	alice.msgIdx++
	require.NoError(t, bob.processReadTokens(aliceKeys2))
	bob.msgIdx++
	require.True(t, alice.equals(bob))
	require.Equal(t, aliceS.Public, *bob.rs)

	return alice, bob, aliceS, bobS
}

func TestWakuPairingHandshakeStateAgreement(t *testing.T) {
	alice, bob, _, _ := driveWakuPairing(t)
	require.Equal(t, len(PatternWakuPairing.Messages), alice.msgIdx)
	require.Equal(t, len(PatternWakuPairing.Messages), bob.msgIdx)
}

func TestHandshakeStateRejectsTamperedEncryptedStaticKey(t *testing.T) {
	bobE, err := generateKeypair()
	require.NoError(t, err)
	aliceS, err := generateKeypair()
	require.NoError(t, err)
	bobS, err := generateKeypair()
	require.NoError(t, err)
	aliceE, err := generateKeypair()
	require.NoError(t, err)

	prologue := []byte("prologue")
	preMessageKeys := [][KeySize]byte{bobE.Public}

	alice, err := newHandshakeState(PatternWakuPairing, true, prologue, &aliceS, &aliceE, nil, preMessageKeys)
	require.NoError(t, err)
	bob, err := newHandshakeState(PatternWakuPairing, false, prologue, &bobS, &bobE, nil, preMessageKeys)
	require.NoError(t, err)

	// Message 1: Alice writes (e, ee), Bob reads.
	aliceKeys1, err := alice.processWriteTokens()
	require.NoError(t, err)
	alice.msgIdx++
	require.NoError(t, bob.processReadTokens(aliceKeys1))
	bob.msgIdx++

	// Message 2: Bob writes (s, es); tamper the ciphertext Alice is
	// about to read.
	bobKeys, err := bob.processWriteTokens()
	require.NoError(t, err)
	bob.msgIdx++
	require.True(t, bobKeys[0].IsEncrypted(), "cs already has a key from 'ee' in message 1")

	tampered := append([]NoisePublicKey{}, bobKeys...)
	tampered[0] = newEncryptedPublicKey(append([]byte{}, bobKeys[0].bytes...))
	tampered[0].bytes[0] ^= 0xff

	err = alice.processReadTokens(tampered)
	require.ErrorIs(t, err, ErrAuthenticationFailure)
	require.True(t, alice.poisoned)
}

func TestHandshakeStatePoisonedAfterFailureRejectsFurtherTokens(t *testing.T) {
	_, bob, _, _ := driveWakuPairing(t)
	bob.poisoned = true

	_, err := bob.processWriteTokens()
	require.ErrorIs(t, err, ErrHandshakeStatePoisoned)

	err = bob.processReadTokens(nil)
	require.ErrorIs(t, err, ErrHandshakeStatePoisoned)
}

func TestHandshakeStateXXPatternAgreement(t *testing.T) {
	aliceS, err := generateKeypair()
	require.NoError(t, err)
	bobS, err := generateKeypair()
	require.NoError(t, err)

	alice, err := newHandshakeState(PatternXX, true, nil, &aliceS, nil, nil, nil)
	require.NoError(t, err)
	bob, err := newHandshakeState(PatternXX, false, nil, &bobS, nil, nil, nil)
	require.NoError(t, err)

	for alice.msgIdx < len(PatternXX.Messages) {
		_, aliceWriting := alice.getReadingWritingState(PatternXX.Messages[alice.msgIdx].Direction)
		if aliceWriting {
			keys, err := alice.processWriteTokens()
			require.NoError(t, err)
			alice.msgIdx++
			require.NoError(t, bob.processReadTokens(keys))
			bob.msgIdx++
		} else {
			keys, err := bob.processWriteTokens()
			require.NoError(t, err)
			bob.msgIdx++
			require.NoError(t, alice.processReadTokens(keys))
			alice.msgIdx++
		}
	}
	require.True(t, alice.equals(bob))
	require.Equal(t, bobS.Public, *alice.rs)
	require.Equal(t, aliceS.Public, *bob.rs)
}
