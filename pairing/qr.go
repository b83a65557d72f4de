package pairing

import (
	"encoding/base64"
	"strings"

	"github.com/evanlin/wakunoise/noise"
)

// QRCode is the out-of-band bootstrap payload a responder displays and
// an initiator scans to learn the responder's ephemeral key and
// commitment to its static key, plus which content topic to pair on.
type QRCode struct {
	ApplicationName    string
	ApplicationVersion string
	ShardID            string
	EphemeralPublicKey [noise.KeySize]byte
	CommittedStaticKey [noise.HashSize]byte
}

// Serialize renders the QR as
// applicationName:applicationVersion:shardId:ephemeralPublicKey:committedStaticKey,
// each field base64url-encoded, per spec.md §6.1.
func (q QRCode) Serialize() string {
	fields := []string{
		base64.URLEncoding.EncodeToString([]byte(q.ApplicationName)),
		base64.URLEncoding.EncodeToString([]byte(q.ApplicationVersion)),
		base64.URLEncoding.EncodeToString([]byte(q.ShardID)),
		base64.URLEncoding.EncodeToString(q.EphemeralPublicKey[:]),
		base64.URLEncoding.EncodeToString(q.CommittedStaticKey[:]),
	}
	return strings.Join(fields, ":")
}

// ParseQRCode reverses Serialize, rejecting anything that isn't
// exactly 5 colon-separated fields or whose key fields don't decode to
// the expected length.
func ParseQRCode(s string) (QRCode, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 {
		return QRCode{}, ErrInvalidQR
	}

	decoded := make([][]byte, len(parts))
	for i, p := range parts {
		b, err := base64.URLEncoding.DecodeString(p)
		if err != nil {
			return QRCode{}, ErrInvalidQR
		}
		decoded[i] = b
	}

	if len(decoded[3]) != noise.KeySize || len(decoded[4]) != noise.HashSize {
		return QRCode{}, ErrInvalidQR
	}

	var qr QRCode
	qr.ApplicationName = string(decoded[0])
	qr.ApplicationVersion = string(decoded[1])
	qr.ShardID = string(decoded[2])
	copy(qr.EphemeralPublicKey[:], decoded[3])
	copy(qr.CommittedStaticKey[:], decoded[4])
	return qr, nil
}

// messageNametag derives the shared nametag for handshake message 1
// from fields already carried on the QR (see SPEC_FULL.md §9 item 6):
// both parties compute the same value from the same scanned code, so
// it needs no separate wire field.
func (q QRCode) messageNametag() noise.MessageNametag {
	h := noise.CommitPublicKey(q.EphemeralPublicKey, q.CommittedStaticKey[:])
	return noise.BytesToMessageNametag(h[:noise.MessageNametagLength])
}
