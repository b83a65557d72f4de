// Package transport provides a concrete net.PacketConn-based
// implementation of the pairing package's Sender/Receiver collaborator
// interfaces.
package transport

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/evanlin/wakunoise/noise"
	"github.com/evanlin/wakunoise/pairing"
)

const maxDatagramSize = 65507

// UDPTransport sends to and receives from a fixed peer address over a
// single net.PacketConn. Content topics are not carried on the wire
// and packets are not filtered by topic: every open subscription
// receives every packet its decoder accepts. A pairing session is
// two-party and normally has exactly one active subscriber at a time.
type UDPTransport struct {
	conn net.PacketConn
	peer net.Addr
	log  *logrus.Entry

	mu   sync.Mutex
	subs map[*subscription]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

type subscription struct {
	dec pairing.Decoder
	ch  chan pairing.DecodedMessage
}

// NewUDPTransport starts a background read loop over conn and begins
// dispatching decoded packets to whatever subscriptions are active.
func NewUDPTransport(conn net.PacketConn, peer net.Addr, log *logrus.Logger) *UDPTransport {
	if log == nil {
		log = logrus.StandardLogger()
	}
	t := &UDPTransport{
		conn: conn,
		peer: peer,
		log:  log.WithField("component", "transport"),
		subs: make(map[*subscription]struct{}),
		done: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Send implements pairing.Sender.
func (t *UDPTransport) Send(enc pairing.Encoder, payload *noise.PayloadV2) error {
	wire, err := enc.ToWire(payload)
	if err != nil {
		return err
	}
	_, err = t.conn.WriteTo(wire, t.peer)
	return err
}

// Subscribe implements pairing.Receiver. The returned stop function
// may be called more than once and removes the subscription so the
// read loop stops decoding for it.
func (t *UDPTransport) Subscribe(dec pairing.Decoder) (<-chan pairing.DecodedMessage, func()) {
	sub := &subscription{dec: dec, ch: make(chan pairing.DecodedMessage, 16)}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, sub)
			t.mu.Unlock()
		})
	}
	return sub.ch, stop
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := t.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			t.log.WithError(err).Debug("read error, stopping transport loop")
			return
		}
		data := append([]byte(nil), buf[:n]...)

		t.mu.Lock()
		targets := make([]*subscription, 0, len(t.subs))
		for s := range t.subs {
			targets = append(targets, s)
		}
		t.mu.Unlock()

		for _, s := range targets {
			payload, err := s.dec.FromWire(data)
			if err != nil {
				t.log.WithError(err).Debug("dropping undecodable packet")
				continue
			}
			select {
			case s.ch <- pairing.DecodedMessage{Payload: payload}:
			default:
				t.log.Warn("subscriber channel full, dropping message")
			}
		}
	}
}

// Close stops the read loop and closes the underlying connection.
func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return t.conn.Close()
}
