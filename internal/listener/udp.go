// Package listener receives barcode scans and user-token swipes as UDP
// datagrams and republishes them to every terminal over redis.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sde1000/quicktill-sub001/internal/infra"

	"github.com/rs/zerolog/log"
)

const (
	KindBarcode   = "barcode"
	KindUserToken = "usertoken"
)

// maxDatagram is larger than any scan we expect.
const maxDatagram = 1024

// Event is one scan as published to the terminals.
type Event struct {
	Kind   string    `json:"kind"`
	Value  string    `json:"value"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Publisher is satisfied by infra.Notifier.
type Publisher interface {
	Publish(ctx context.Context, channel, payload string) error
}

// Listener turns each datagram into one Event.
type Listener struct {
	kind    string
	channel string
	addr    string
	pub     Publisher
	now     func() time.Time
}

// Barcode listens for barcode scanner datagrams on addr.
func Barcode(addr string, pub Publisher) *Listener {
	return &Listener{kind: KindBarcode, channel: infra.ChannelBarcode, addr: addr, pub: pub, now: time.Now}
}

// UserToken listens for user token reader datagrams on addr.
func UserToken(addr string, pub Publisher) *Listener {
	return &Listener{kind: KindUserToken, channel: infra.ChannelUserToken, addr: addr, pub: pub, now: time.Now}
}

// Run binds the UDP address and serves until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", l.addr)
	if err != nil {
		return err
	}
	log.Info().Str("kind", l.kind).Str("addr", conn.LocalAddr().String()).Msg("udp listener started")
	return l.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx is cancelled, then closes it.
func (l *Listener) Serve(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Str("kind", l.kind).Msg("udp listener stopped")
				return nil
			}
			log.Warn().Err(err).Str("kind", l.kind).Msg("udp read failed")
			continue
		}
		l.handle(ctx, buf[:n], from)
	}
}

func (l *Listener) handle(ctx context.Context, data []byte, from net.Addr) {
	value := strings.TrimSpace(string(data))
	if value == "" || !utf8.ValidString(value) {
		log.Debug().Str("kind", l.kind).Str("from", from.String()).Msg("ignoring unreadable datagram")
		return
	}
	ev := Event{Kind: l.kind, Value: value, Source: from.String(), At: l.now().UTC()}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("encode scan event")
		return
	}
	if err := l.pub.Publish(ctx, l.channel, string(payload)); err != nil {
		log.Error().Err(err).Str("kind", l.kind).Msg("publish scan event")
		return
	}
	log.Debug().Str("kind", l.kind).Str("from", ev.Source).Msg("scan received")
}
