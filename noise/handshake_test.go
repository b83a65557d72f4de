package noise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// setupWakuPairingHandshakes builds a fresh pair of Handshake drivers
// with Bob's ephemeral already exchanged out-of-band (as it would be
// via QR), ready to run the 3-message exchange.
func setupWakuPairingHandshakes(t *testing.T) (alice, bob *Handshake, aliceS, bobS KeyPair) {
	t.Helper()

	bobE, err := GenerateKeypair()
	require.NoError(t, err)
	aliceS, err = GenerateKeypair()
	require.NoError(t, err)
	bobS, err = GenerateKeypair()
	require.NoError(t, err)
	aliceE, err := GenerateKeypair()
	require.NoError(t, err)

	prologue := []byte("wakunoise-pairing-prologue")
	preMessageKeys := [][KeySize]byte{bobE.Public}

	alice, err = NewHandshake(PatternWakuPairing, true, prologue, &aliceS, &aliceE, nil, preMessageKeys)
	require.NoError(t, err)
	bob, err = NewHandshake(PatternWakuPairing, false, prologue, &bobS, &bobE, nil, preMessageKeys)
	require.NoError(t, err)

	return alice, bob, aliceS, bobS
}

// runWakuPairingHandshake drives all three messages to completion and
// returns both sides' finalized results, asserting agreement at every
// boundary (authcode, handshake hash, remote static keys).
func runWakuPairingHandshake(t *testing.T) (aliceResult, bobResult *HandshakeResult, aliceS, bobS KeyPair) {
	t.Helper()
	alice, bob, aliceS, bobS := setupWakuPairingHandshakes(t)

	// Message 1: Alice writes (e, ee), Bob reads.
	nametag1, err := alice.ToMessageNametag()
	require.NoError(t, err)
	res1, err := alice.Step(StepInput{TransportMessage: []byte("hello from alice"), MessageNametag: nametag1})
	require.NoError(t, err)

	_, err = bob.Step(StepInput{ReadPayload: res1.PayloadV2, MessageNametag: nametag1})
	require.NoError(t, err)

	// Message 2: Bob writes (s, es), Alice reads.
	nametag2, err := bob.ToMessageNametag()
	require.NoError(t, err)
	res2, err := bob.Step(StepInput{TransportMessage: []byte("hello from bob"), MessageNametag: nametag2})
	require.NoError(t, err)

	_, err = alice.Step(StepInput{ReadPayload: res2.PayloadV2, MessageNametag: nametag2})
	require.NoError(t, err)

	aliceCode, err := alice.Authcode()
	require.NoError(t, err)
	bobCode, err := bob.Authcode()
	require.NoError(t, err)
	require.Equal(t, aliceCode, bobCode)
	require.Len(t, aliceCode, 5)

	// Message 3: Alice writes (s, se, ss), Bob reads.
	nametag3, err := alice.ToMessageNametag()
	require.NoError(t, err)
	res3, err := alice.Step(StepInput{TransportMessage: []byte("confirmed"), MessageNametag: nametag3})
	require.NoError(t, err)

	_, err = bob.Step(StepInput{ReadPayload: res3.PayloadV2, MessageNametag: nametag3})
	require.NoError(t, err)

	aliceResult, err = alice.FinalizeHandshake()
	require.NoError(t, err)
	bobResult, err = bob.FinalizeHandshake()
	require.NoError(t, err)

	require.True(t, alice.IsComplete())
	require.True(t, bob.IsComplete())

	require.Equal(t, aliceResult.HandshakeHash(), bobResult.HandshakeHash())
	require.Equal(t, bobS.Public, aliceResult.RemoteStaticKey())
	require.Equal(t, aliceS.Public, bobResult.RemoteStaticKey())

	return aliceResult, bobResult, aliceS, bobS
}

func TestWakuPairingHandshakeEndToEnd(t *testing.T) {
	runWakuPairingHandshake(t)
}

func TestFinalizeHandshakeRejectsIncompleteHandshake(t *testing.T) {
	alice, _, _, _ := setupWakuPairingHandshakes(t)

	nametag1, err := alice.ToMessageNametag()
	require.NoError(t, err)
	_, err = alice.Step(StepInput{TransportMessage: []byte("x"), MessageNametag: nametag1})
	require.NoError(t, err)
	_, err = alice.FinalizeHandshake()
	require.ErrorIs(t, err, ErrHandshakeNotComplete)
}

func TestFinalizeHandshakeIsIdempotentOnceComplete(t *testing.T) {
	alice, bob, _, _ := setupWakuPairingHandshakes(t)

	nametag1, err := alice.ToMessageNametag()
	require.NoError(t, err)
	res1, err := alice.Step(StepInput{TransportMessage: []byte("hi"), MessageNametag: nametag1})
	require.NoError(t, err)
	_, err = bob.Step(StepInput{ReadPayload: res1.PayloadV2, MessageNametag: nametag1})
	require.NoError(t, err)

	nametag2, err := bob.ToMessageNametag()
	require.NoError(t, err)
	res2, err := bob.Step(StepInput{TransportMessage: []byte("hi back"), MessageNametag: nametag2})
	require.NoError(t, err)
	_, err = alice.Step(StepInput{ReadPayload: res2.PayloadV2, MessageNametag: nametag2})
	require.NoError(t, err)

	nametag3, err := alice.ToMessageNametag()
	require.NoError(t, err)
	res3, err := alice.Step(StepInput{TransportMessage: []byte("confirmed"), MessageNametag: nametag3})
	require.NoError(t, err)
	_, err = bob.Step(StepInput{ReadPayload: res3.PayloadV2, MessageNametag: nametag3})
	require.NoError(t, err)

	first, err := alice.FinalizeHandshake()
	require.NoError(t, err)
	second, err := alice.FinalizeHandshake()
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestHandshakeStepRejectsWrongNametag(t *testing.T) {
	alice, bob, _, _ := setupWakuPairingHandshakes(t)

	nametag1, err := alice.ToMessageNametag()
	require.NoError(t, err)
	res1, err := alice.Step(StepInput{TransportMessage: []byte("hello"), MessageNametag: nametag1})
	require.NoError(t, err)

	wrongNametag := BytesToMessageNametag([]byte("not-the-right-tag"))
	_, err = bob.Step(StepInput{ReadPayload: res1.PayloadV2, MessageNametag: wrongNametag})
	var nametagErr *MessageNametagError
	require.ErrorAs(t, err, &nametagErr)
}

func TestHandshakeStepPoisonsOnAuthenticationFailure(t *testing.T) {
	alice, bob, _, _ := setupWakuPairingHandshakes(t)

	nametag1, err := alice.ToMessageNametag()
	require.NoError(t, err)
	res1, err := alice.Step(StepInput{TransportMessage: []byte("hello"), MessageNametag: nametag1})
	require.NoError(t, err)

	tampered := *res1.PayloadV2
	tampered.TransportMessage = append([]byte{}, res1.PayloadV2.TransportMessage...)
	tampered.TransportMessage[0] ^= 0xff

	_, err = bob.Step(StepInput{ReadPayload: &tampered, MessageNametag: nametag1})
	require.Error(t, err)

	_, err = bob.Step(StepInput{ReadPayload: &tampered, MessageNametag: nametag1})
	require.ErrorIs(t, err, ErrHandshakeStatePoisoned)
}

func TestHandshakeResultWriteReadMessageRoundTrip(t *testing.T) {
	aliceResult, bobResult, _, _ := runWakuPairingHandshake(t)

	for i := 0; i < 500; i++ {
		message := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		payload, err := aliceResult.WriteMessage(message)
		require.NoError(t, err)

		recovered, err := bobResult.ReadMessage(payload)
		require.NoError(t, err)
		require.Equal(t, message, recovered)
	}
}

func TestHandshakeResultDroppedMessageRecoversViaDelete(t *testing.T) {
	aliceResult, bobResult, _, _ := runWakuPairingHandshake(t)

	_, err := aliceResult.WriteMessage([]byte("this one gets lost"))
	require.NoError(t, err)
	delivered, err := aliceResult.WriteMessage([]byte("this one arrives"))
	require.NoError(t, err)

	_, err = bobResult.ReadMessage(delivered)
	var outOfOrder *OutOfOrderError
	require.ErrorAs(t, err, &outOfOrder)
	require.Equal(t, 1, outOfOrder.Skipped)

	bobResult.NametagsInbound().Delete(outOfOrder.Skipped)
	recovered, err := bobResult.ReadMessage(delivered)
	require.NoError(t, err)
	require.Equal(t, []byte("this one arrives"), recovered)
}

func TestHandshakeResultForeignNametagNotFound(t *testing.T) {
	_, bobResult, _, _ := runWakuPairingHandshake(t)

	forged := &PayloadV2{
		MessageNametag:   BytesToMessageNametag([]byte("totally foreign tag")),
		TransportMessage: []byte("irrelevant"),
	}
	_, err := bobResult.ReadMessage(forged)
	require.ErrorIs(t, err, ErrNametagNotFound)
}

func TestHandshakeResultNonceExhaustionIsSurfaced(t *testing.T) {
	aliceResult, _, _, _ := runWakuPairingHandshake(t)
	aliceResult.nametagsOutbound.SetCounter(nonceMax)

	_, err := aliceResult.WriteMessage([]byte("one too many"))
	require.ErrorIs(t, err, ErrNonceExhausted)
}
