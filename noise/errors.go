package noise

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailure is returned when an AEAD tag fails to verify.
	ErrAuthenticationFailure = errors.New("noise: authentication failure")
	// ErrNonceExhausted is returned once a CipherState's nonce has reached its cap.
	ErrNonceExhausted = errors.New("noise: nonce exhausted")
	// ErrInvalidPattern is returned for unrecognized pattern names or malformed pre-messages.
	ErrInvalidPattern = errors.New("noise: invalid handshake pattern")
	// ErrInvalidKey is returned for wrong-length keys, bad flags, or incompatible DH inputs.
	ErrInvalidKey = errors.New("noise: invalid key")
	// ErrInvalidPadding is returned when PKCS#7 unpadding fails validation.
	ErrInvalidPadding = errors.New("noise: invalid padding")
	// ErrHandshakeTooLarge is returned when a serialized handshake-key section exceeds 255 bytes.
	ErrHandshakeTooLarge = errors.New("noise: handshake key section too large")
	// ErrCommitmentMismatch names a failed static-key commitment opening. No
	// function in this package returns it; the pairing driver reports that
	// failure with pairing.ErrCommitmentMismatch.
	ErrCommitmentMismatch = errors.New("noise: commitment mismatch")
	// ErrHandshakeNotComplete is returned by FinalizeHandshake before the last step has run.
	ErrHandshakeNotComplete = errors.New("noise: handshake not complete")
	// ErrHandshakeStatePoisoned is returned by any call on a HandshakeState that has already faulted.
	ErrHandshakeStatePoisoned = errors.New("noise: handshake state poisoned by a prior error")
	// ErrUnknownProtocol is returned when a pattern name has no registered protocol id.
	ErrUnknownProtocol = errors.New("noise: unknown protocol id for pattern")

	// ErrNametagNotFound is a diagnostic: the buffer holds no slot matching the tag at all.
	ErrNametagNotFound = errors.New("noise: message nametag not found in buffer")
)

// MessageNametagError reports a mismatch between an expected and observed nametag
// during a handshake step. It is recoverable: the caller may wait for a later message.
type MessageNametagError struct {
	Expected MessageNametag
	Actual   MessageNametag
}

func (e *MessageNametagError) Error() string {
	return fmt.Sprintf("noise: unexpected message nametag: expected %x, got %x", e.Expected, e.Actual)
}

// OutOfOrderError reports that a nametag was found in the buffer, but not at its head.
type OutOfOrderError struct {
	Skipped int
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("noise: message nametag out of order, %d message(s) skipped", e.Skipped)
}
