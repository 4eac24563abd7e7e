package main

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// RunTestPublisher connects to this same server as an ordinary publisher
// client and emits synthetic binary frames at a fixed rate, so a fresh
// deployment has something to subscribe to without a real screen-share
// source. It dials over the wire exactly like any other client rather
// than being spliced into Room internals directly, mirroring the
// teacher's virtual-client pattern of joining as a first-class
// participant (testbot.go) but generalized from an embedded tone to a
// procedurally generated frame, since no audio codec is wired here.
func RunTestPublisher(ctx context.Context, wsAddr string, tlsConfig *tls.Config, roomID string, frameInterval time.Duration) {
	scheme := "ws"
	if tlsConfig != nil {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: wsAddr, Path: "/publish/" + roomID}

	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Printf("[testpublisher] dial %s: %v", u.String(), err)
		return
	}
	defer conn.Close()
	log.Printf("[testpublisher] connected as publisher for room %q", roomID)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var seq uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := syntheticFrame(seq)
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Printf("[testpublisher] write: %v", err)
			return
		}
		seq++
	}
}

// syntheticFrame builds a deterministic, recognizable payload: a 4-byte
// big-endian sequence number followed by a repeating filler byte, large
// enough to exercise a subscriber's binary frame handling without
// depending on any real codec.
func syntheticFrame(seq uint32) []byte {
	const fillerLen = 256
	frame := make([]byte, 4+fillerLen)
	binary.BigEndian.PutUint32(frame[0:4], seq)
	filler := byte(seq % 256)
	for i := 4; i < len(frame); i++ {
		frame[i] = filler
	}
	return frame
}

// testPublisherLabel is a small helper kept separate from the wiring
// logic above purely for log clarity in main.go.
func testPublisherLabel(roomID string) string {
	return fmt.Sprintf("test-publisher(%s)", roomID)
}
