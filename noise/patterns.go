package noise

import "strings"

// Token is one instruction in a Noise message pattern.
type Token int

const (
	TokenE Token = iota
	TokenS
	TokenEE
	TokenES
	TokenSE
	TokenSS
	TokenPSK
)

// Direction is which party writes a given message pattern.
type Direction int

const (
	// DirectionToResponder is "->": the initiator writes, the responder reads.
	DirectionToResponder Direction = iota
	// DirectionToInitiator is "<-": the responder writes, the initiator reads.
	DirectionToInitiator
)

// MessagePattern is one handshake message: a direction plus its tokens.
type MessagePattern struct {
	Direction Direction
	Tokens    []Token
}

// PreMessagePattern is a pre-message: a direction plus the (e and/or s)
// tokens known to both parties before the handshake proper starts.
type PreMessagePattern struct {
	Direction Direction
	Tokens    []Token
}

// HandshakePattern is a named, ordered sequence of pre-messages and
// messages, e.g. WakuPairing or the standard XX pattern.
type HandshakePattern struct {
	Name         string
	PreMessages  []PreMessagePattern
	Messages     []MessagePattern
	protocolID   uint8
}

// IsPSK reports whether any pre-message or message token stream
// requires PSK mixing, per the "psk" substring convention in the
// pattern name (spec.md §4.5).
func (p HandshakePattern) IsPSK() bool {
	return strings.Contains(strings.ToLower(p.Name), "psk")
}

// ProtocolID returns the wire protocol id assigned to this pattern
// (spec.md §6.4).
func (p HandshakePattern) ProtocolID() uint8 {
	return p.protocolID
}

// Protocol ids, spec.md §6.4.
const (
	ProtocolIDNone            uint8 = 0
	ProtocolIDK1K1            uint8 = 10
	ProtocolIDXK1             uint8 = 11
	ProtocolIDXX              uint8 = 12
	ProtocolIDXXpsk0          uint8 = 13
	ProtocolIDWakuPairing     uint8 = 14
	ProtocolIDChaChaPoly      uint8 = 30 // reserved; post-handshake traffic ships as ProtocolIDNone (0), see spec.md §9.
)

var (
	// PatternXX is the standard 3-message mutual-authentication pattern.
	PatternXX = HandshakePattern{
		Name: "Noise_XX_25519_ChaChaPoly_SHA256",
		Messages: []MessagePattern{
			{Direction: DirectionToResponder, Tokens: []Token{TokenE}},
			{Direction: DirectionToInitiator, Tokens: []Token{TokenE, TokenEE, TokenS, TokenES}},
			{Direction: DirectionToResponder, Tokens: []Token{TokenS, TokenSE}},
		},
		protocolID: ProtocolIDXX,
	}

	// PatternXXpsk0 is PatternXX with a psk token prepended to message 1.
	PatternXXpsk0 = HandshakePattern{
		Name: "Noise_XXpsk0_25519_ChaChaPoly_SHA256",
		Messages: []MessagePattern{
			{Direction: DirectionToResponder, Tokens: []Token{TokenPSK, TokenE}},
			{Direction: DirectionToInitiator, Tokens: []Token{TokenE, TokenEE, TokenS, TokenES}},
			{Direction: DirectionToResponder, Tokens: []Token{TokenS, TokenSE}},
		},
		protocolID: ProtocolIDXXpsk0,
	}

	// PatternXK1 is the deferred variant of XK: the responder's static
	// key is known in advance, but the initiator's es DH is deferred to
	// message 2 instead of appearing in message 1.
	PatternXK1 = HandshakePattern{
		Name: "Noise_XK1_25519_ChaChaPoly_SHA256",
		PreMessages: []PreMessagePattern{
			{Direction: DirectionToInitiator, Tokens: []Token{TokenS}},
		},
		Messages: []MessagePattern{
			{Direction: DirectionToResponder, Tokens: []Token{TokenE}},
			{Direction: DirectionToInitiator, Tokens: []Token{TokenE, TokenEE, TokenES}},
			{Direction: DirectionToResponder, Tokens: []Token{TokenS, TokenSE}},
		},
		protocolID: ProtocolIDXK1,
	}

	// PatternK1K1 is the deferred variant of KK: both static keys are
	// known in advance, but both es/se DH computations are deferred to
	// message 2, matching the second message's ee.
	PatternK1K1 = HandshakePattern{
		Name: "Noise_K1K1_25519_ChaChaPoly_SHA256",
		PreMessages: []PreMessagePattern{
			{Direction: DirectionToResponder, Tokens: []Token{TokenS}},
			{Direction: DirectionToInitiator, Tokens: []Token{TokenS}},
		},
		Messages: []MessagePattern{
			{Direction: DirectionToResponder, Tokens: []Token{TokenE}},
			{Direction: DirectionToInitiator, Tokens: []Token{TokenE, TokenEE, TokenES, TokenSE}},
		},
		protocolID: ProtocolIDK1K1,
	}

	// PatternWakuPairing is spec.md §6.5's device-pairing pattern: the
	// responder's ephemeral key arrives out-of-band via QR as a
	// pre-message, then three messages carry static-key commitments and
	// their openings.
	PatternWakuPairing = HandshakePattern{
		Name: "Noise_WakuPairing_25519_ChaChaPoly_SHA256",
		PreMessages: []PreMessagePattern{
			{Direction: DirectionToInitiator, Tokens: []Token{TokenE}},
		},
		Messages: []MessagePattern{
			{Direction: DirectionToResponder, Tokens: []Token{TokenE, TokenEE}},
			{Direction: DirectionToInitiator, Tokens: []Token{TokenS, TokenES}},
			{Direction: DirectionToResponder, Tokens: []Token{TokenS, TokenSE, TokenSS}},
		},
		protocolID: ProtocolIDWakuPairing,
	}

	registeredPatterns = map[string]HandshakePattern{
		PatternXX.Name:          PatternXX,
		PatternXXpsk0.Name:      PatternXXpsk0,
		PatternXK1.Name:         PatternXK1,
		PatternK1K1.Name:        PatternK1K1,
		PatternWakuPairing.Name: PatternWakuPairing,
	}
)

// ProtocolIDForPattern looks up the wire protocol id for a pattern
// name, failing with ErrUnknownProtocol if the pattern isn't registered.
func ProtocolIDForPattern(name string) (uint8, error) {
	p, ok := registeredPatterns[name]
	if !ok {
		return 0, ErrUnknownProtocol
	}
	return p.protocolID, nil
}
