// Command noisepair-demo pairs two local devices over a UDP socket
// using the WakuPairing handshake, showing a QR string on the
// responder side for the initiator to paste back in.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ogier/pflag"
	"github.com/sirupsen/logrus"

	"github.com/evanlin/wakunoise/noise"
	"github.com/evanlin/wakunoise/pairing"
	"github.com/evanlin/wakunoise/transport"
)

func main() {
	config := newConfig()

	static, err := noise.GenerateKeypair()
	if err != nil {
		eprintln("Error generating static keypair:", err)
		os.Exit(1)
	}

	conn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", config.port))
	if err != nil {
		eprintln("Error opening socket:", err)
		os.Exit(1)
	}
	defer conn.Close()

	log := logrus.StandardLogger()
	pairingConfig := pairing.Config{
		ApplicationName:    "noisepair-demo",
		ApplicationVersion: "1",
		ShardID:            "0",
		Timeout:            config.timeout(),
		ValidateAuthCode:   confirmAuthCode,
		Logger:             log,
	}

	if config.qr == "" {
		runResponder(conn, static, pairingConfig)
		return
	}
	runInitiator(conn, static, pairingConfig, config.qr, config.peerAddr)
}

func runResponder(conn net.PacketConn, static noise.KeyPair, cfg pairing.Config) {
	responder, err := pairing.NewResponder(cfg, static)
	if err != nil {
		eprintln("Error starting responder:", err)
		os.Exit(1)
	}

	fmt.Println("Scan or paste this code on the initiator:")
	fmt.Println(responder.QRCode().Serialize())
	fmt.Println("Waiting for peer...")

	peerAddr, err := waitForFirstPacket(conn, cfg.Timeout)
	if err != nil {
		eprintln("Error waiting for peer:", err)
		os.Exit(1)
	}
	t := transport.NewUDPTransport(conn, peerAddr, nil)
	defer t.Close()

	channel, err := responder.Pair(t, t)
	if err != nil {
		eprintln("Pairing failed:", err)
		os.Exit(1)
	}
	defer channel.Close()

	runChat(channel)
}

func runInitiator(conn net.PacketConn, static noise.KeyPair, cfg pairing.Config, qrString, peer string) {
	qr, err := pairing.ParseQRCode(strings.TrimSpace(qrString))
	if err != nil {
		eprintln("Error parsing QR code:", err)
		os.Exit(1)
	}

	peerAddr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		eprintln("Error resolving peer address:", err)
		os.Exit(1)
	}

	t := transport.NewUDPTransport(conn, peerAddr, nil)
	defer t.Close()

	initiator := pairing.NewInitiator(cfg, static)
	channel, err := initiator.Pair(qr, t, t)
	if err != nil {
		eprintln("Pairing failed:", err)
		os.Exit(1)
	}
	defer channel.Close()

	runChat(channel)
}

func confirmAuthCode(code string) bool {
	fmt.Printf("Confirmation code: %s — does it match the peer? [y/N] ", code)
	reply, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "y")
}

func runChat(channel *pairing.Channel) {
	fmt.Println("Paired. Type messages, or Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := channel.Send(scanner.Bytes()); err != nil {
			eprintln("Error sending message:", err)
		}
	}
}

func waitForFirstPacket(conn net.PacketConn, timeout time.Duration) (net.Addr, error) {
	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, addr, err := conn.ReadFrom(buf)
	conn.SetReadDeadline(time.Time{})
	return addr, err
}

type config struct {
	port           uint16
	qr             string
	peerAddr       string
	timeoutSeconds float64
}

func (c config) timeout() time.Duration {
	return time.Duration(c.timeoutSeconds * float64(time.Second))
}

func newConfig() config {
	var c config

	pflag.Usage = printUsage
	port := pflag.Uint16P("port", "p", 4242, "local UDP port to listen on")
	qr := pflag.StringP("qr", "q", "", "QR code string scanned from the responder; omit to act as responder")
	timeoutSeconds := pflag.Float64P("timeout", "t", 30.0, "pairing timeout in seconds, one deadline for the whole handshake")

	pflag.Parse()

	args := pflag.Args()
	if *qr != "" {
		if len(args) < 1 {
			eprintln("Initiator mode requires the responder's host:port as an argument")
			printUsage()
			os.Exit(1)
		}
		c.peerAddr = args[0]
	}

	c.port = *port
	c.qr = *qr
	c.timeoutSeconds = *timeoutSeconds
	return c
}

func printUsage() {
	eprintln("Usage: " + os.Args[0] + " [OPTION]... [RESPONDER_HOST:PORT]")
	eprintln("Flags:")
	pflag.PrintDefaults()
}

func eprintln(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
}
