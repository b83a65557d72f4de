package pairing

import (
	"bytes"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evanlin/wakunoise/noise"
)

// AuthCodeValidator is called with the 5-digit confirmation code once
// both parties have processed the first two handshake messages. It
// must return false if the user declines the code displayed on the
// peer, aborting the pairing.
type AuthCodeValidator func(code string) bool

// Config parameterizes one pairing session: the application identity
// that feeds the content topic, the timeout, and the authcode
// confirmation callback. Timeout is a single deadline for the whole
// Pair call, set when Pair starts; every wait for the peer and the
// authcode callback share it.
type Config struct {
	ApplicationName    string
	ApplicationVersion string
	ShardID            string
	Timeout            time.Duration
	ValidateAuthCode   AuthCodeValidator
	Logger             *logrus.Logger
}

const defaultTimeout = 30 * time.Second

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c Config) logger() *logrus.Entry {
	l := c.Logger
	if l == nil {
		l = logrus.StandardLogger()
	}
	return l.WithField("component", "pairing")
}

// Responder is the party that shows the QR code: its ephemeral key and
// commitment to its own static key are published out-of-band, then it
// waits for an initiator to scan the code and start the handshake.
type Responder struct {
	cfg       Config
	static    noise.KeyPair
	ephemeral noise.KeyPair
	opener    []byte
	qr        QRCode
}

// NewResponder generates a fresh ephemeral key and commitment opener
// and builds the QRCode a caller renders for scanning.
func NewResponder(cfg Config, static noise.KeyPair) (*Responder, error) {
	ephemeral, err := noise.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	opener, err := noise.RandomBytes(32)
	if err != nil {
		return nil, err
	}
	committed := noise.CommitPublicKey(static.Public, opener)

	qr := QRCode{
		ApplicationName:    cfg.ApplicationName,
		ApplicationVersion: cfg.ApplicationVersion,
		ShardID:            cfg.ShardID,
		EphemeralPublicKey: ephemeral.Public,
		CommittedStaticKey: committed,
	}
	return &Responder{cfg: cfg, static: static, ephemeral: ephemeral, opener: opener, qr: qr}, nil
}

// QRCode returns the code to display for scanning.
func (r *Responder) QRCode() QRCode {
	return r.qr
}

// Pair waits for the initiator's handshake messages, completes the
// 3-message WakuPairing exchange, and returns the resulting secure
// channel. It blocks until completion, failure, or the configured
// timeout elapses waiting for the peer.
func (r *Responder) Pair(sender Sender, receiver Receiver) (channel *Channel, err error) {
	log := r.cfg.logger()
	topic := ContentTopic(r.qr)
	enc := PayloadEncoder{Topic: topic}
	dec := PayloadDecoder{Topic: topic}

	msgs, stop := receiver.Subscribe(dec)
	defer func() {
		if err != nil {
			stop()
		}
	}()

	deadline := time.Now().Add(r.cfg.timeout())

	hs, err := noise.NewHandshake(noise.PatternWakuPairing, false, []byte(r.qr.Serialize()), &r.static, &r.ephemeral, nil, nil)
	if err != nil {
		return nil, err
	}

	log.Debug("waiting for handshake message 1")
	step1, err := stepRead(hs, msgs, r.qr.messageNametag(), deadline, log)
	if err != nil {
		return nil, err
	}
	initiatorCommitment := append([]byte{}, step1.TransportMessage...)

	nametag2, err := hs.ToMessageNametag()
	if err != nil {
		return nil, err
	}
	step2, err := hs.Step(noise.StepInput{TransportMessage: r.opener, MessageNametag: nametag2})
	if err != nil {
		return nil, err
	}
	if err := sender.Send(enc, step2.PayloadV2); err != nil {
		return nil, err
	}
	log.Debug("sent handshake message 2")

	code, err := hs.Authcode()
	if err != nil {
		return nil, err
	}
	if !r.cfg.ValidateAuthCode(code) {
		return nil, ErrAuthcodeRejected
	}

	nametag3, err := hs.ToMessageNametag()
	if err != nil {
		return nil, err
	}
	step3, err := stepRead(hs, msgs, nametag3, deadline, log)
	if err != nil {
		return nil, err
	}

	remoteStatic, ok := hs.RemoteStaticKey()
	if !ok {
		return nil, noise.ErrInvalidKey
	}
	commitment := noise.CommitPublicKey(remoteStatic, step3.TransportMessage)
	if !bytes.Equal(commitment[:], initiatorCommitment) {
		return nil, ErrCommitmentMismatch
	}

	result, err := hs.FinalizeHandshake()
	if err != nil {
		return nil, err
	}
	log.Debug("pairing complete")

	return newChannel(result, sender, enc, msgs, stop, log), nil
}

// Initiator is the party that scans the QR code and drives the
// handshake to completion.
type Initiator struct {
	cfg    Config
	static noise.KeyPair
}

// NewInitiator builds an Initiator for a given static key.
func NewInitiator(cfg Config, static noise.KeyPair) *Initiator {
	return &Initiator{cfg: cfg, static: static}
}

// Pair performs the WakuPairing exchange against a scanned QR code and
// returns the resulting secure channel.
func (i *Initiator) Pair(qr QRCode, sender Sender, receiver Receiver) (channel *Channel, err error) {
	log := i.cfg.logger()
	topic := ContentTopic(qr)
	enc := PayloadEncoder{Topic: topic}
	dec := PayloadDecoder{Topic: topic}

	msgs, stop := receiver.Subscribe(dec)
	defer func() {
		if err != nil {
			stop()
		}
	}()

	deadline := time.Now().Add(i.cfg.timeout())

	ephemeral, err := noise.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	opener, err := noise.RandomBytes(32)
	if err != nil {
		return nil, err
	}
	commitment := noise.CommitPublicKey(i.static.Public, opener)

	hs, err := noise.NewHandshake(noise.PatternWakuPairing, true, []byte(qr.Serialize()), &i.static, &ephemeral, nil, [][noise.KeySize]byte{qr.EphemeralPublicKey})
	if err != nil {
		return nil, err
	}

	step1, err := hs.Step(noise.StepInput{TransportMessage: commitment[:], MessageNametag: qr.messageNametag()})
	if err != nil {
		return nil, err
	}
	if err := sender.Send(enc, step1.PayloadV2); err != nil {
		return nil, err
	}
	log.Debug("sent handshake message 1, waiting for message 2")

	nametag2, err := hs.ToMessageNametag()
	if err != nil {
		return nil, err
	}
	step2, err := stepRead(hs, msgs, nametag2, deadline, log)
	if err != nil {
		return nil, err
	}

	code, err := hs.Authcode()
	if err != nil {
		return nil, err
	}
	if !i.cfg.ValidateAuthCode(code) {
		return nil, ErrAuthcodeRejected
	}

	remoteStatic, ok := hs.RemoteStaticKey()
	if !ok {
		return nil, noise.ErrInvalidKey
	}
	expected := noise.CommitPublicKey(remoteStatic, step2.TransportMessage)
	if !bytes.Equal(expected[:], qr.CommittedStaticKey[:]) {
		return nil, ErrCommitmentMismatch
	}

	nametag3, err := hs.ToMessageNametag()
	if err != nil {
		return nil, err
	}
	step3, err := hs.Step(noise.StepInput{TransportMessage: opener, MessageNametag: nametag3})
	if err != nil {
		return nil, err
	}
	if err := sender.Send(enc, step3.PayloadV2); err != nil {
		return nil, err
	}

	result, err := hs.FinalizeHandshake()
	if err != nil {
		return nil, err
	}
	log.Debug("pairing complete")

	return newChannel(result, sender, enc, msgs, stop, log), nil
}

// stepRead waits for the next inbound message carrying the expected
// nametag, retrying past messages that fail nametag validation
// (recoverable per spec.md §7) until deadline.
func stepRead(hs *noise.Handshake, msgs <-chan DecodedMessage, nametag noise.MessageNametag, deadline time.Time, log *logrus.Entry) (*noise.StepResult, error) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrPairingTimeout
		}
		select {
		case m, ok := <-msgs:
			if !ok {
				return nil, ErrPairingTimeout
			}
			result, err := hs.Step(noise.StepInput{ReadPayload: m.Payload, MessageNametag: nametag})
			var nametagErr *noise.MessageNametagError
			if errors.As(err, &nametagErr) {
				log.WithError(err).Debug("unexpected nametag on handshake message, still waiting")
				continue
			}
			if err != nil {
				return nil, err
			}
			return result, nil
		case <-time.After(remaining):
			return nil, ErrPairingTimeout
		}
	}
}
