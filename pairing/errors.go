package pairing

import "errors"

var (
	// ErrAuthcodeRejected is returned when either party declines the
	// displayed confirmation code.
	ErrAuthcodeRejected = errors.New("pairing: authcode rejected")
	// ErrPairingTimeout is returned when a driver-configured deadline
	// elapses while waiting for the peer's next message.
	ErrPairingTimeout = errors.New("pairing: timed out waiting for peer")
	// ErrCommitmentMismatch is returned when a disclosed opener doesn't
	// reproduce the commitment the peer published earlier.
	ErrCommitmentMismatch = errors.New("pairing: static key commitment mismatch")
	// ErrInvalidQR is returned when a scanned QR string doesn't parse.
	ErrInvalidQR = errors.New("pairing: invalid QR code")
	// ErrUnsupportedWireVersion is returned by a Decoder when the
	// leading version byte doesn't match what this module emits.
	ErrUnsupportedWireVersion = errors.New("pairing: unsupported wire version")
)
