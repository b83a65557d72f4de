package pairing

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evanlin/wakunoise/noise"
)

// Channel is the secure post-handshake connection a completed Pair
// call returns. It reuses the subscription the driver opened during
// pairing, so no message sent immediately after completion is missed.
type Channel struct {
	result *noise.HandshakeResult
	sender Sender
	enc    Encoder
	msgs   <-chan DecodedMessage
	stop   func()
	log    *logrus.Entry
}

func newChannel(result *noise.HandshakeResult, sender Sender, enc Encoder, msgs <-chan DecodedMessage, stop func(), log *logrus.Entry) *Channel {
	return &Channel{result: result, sender: sender, enc: enc, msgs: msgs, stop: stop, log: log}
}

// Send encrypts and transmits one application message.
func (c *Channel) Send(message []byte) error {
	payload, err := c.result.WriteMessage(message)
	if err != nil {
		return err
	}
	return c.sender.Send(c.enc, payload)
}

// Receive blocks for the next application message. A timeout of 0
// blocks indefinitely. A dropped message detected via the nametag
// buffer (spec.md §4.9, scenario S5) is resynchronized automatically
// by advancing past the gap; any other decode failure is logged and
// the message is dropped, per the no-DoS-oracle policy of spec.md §7 -
// it never surfaces as an error to the caller.
func (c *Channel) Receive(timeout time.Duration) ([]byte, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = time.After(timeout)
	}
	for {
		select {
		case m, ok := <-c.msgs:
			if !ok {
				return nil, ErrPairingTimeout
			}
			message, err := c.result.ReadMessage(m.Payload)
			var outOfOrder *noise.OutOfOrderError
			if errors.As(err, &outOfOrder) {
				c.log.WithField("skipped", outOfOrder.Skipped).Warn("dropped message detected, resynchronizing nametag buffer")
				c.result.NametagsInbound().Delete(outOfOrder.Skipped)
				message, err = c.result.ReadMessage(m.Payload)
			}
			if err != nil {
				c.log.WithError(err).Debug("dropping undecodable post-handshake message")
				continue
			}
			return message, nil
		case <-deadline:
			return nil, ErrPairingTimeout
		}
	}
}

// RemoteStaticKey returns the peer's static public key, verified by
// commitment during pairing.
func (c *Channel) RemoteStaticKey() [noise.KeySize]byte {
	return c.result.RemoteStaticKey()
}

// Close releases the underlying subscription.
func (c *Channel) Close() {
	c.stop()
}
