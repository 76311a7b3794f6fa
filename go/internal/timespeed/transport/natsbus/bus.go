// Package natsbus carries mod messages over NATS core subjects.
//
// Every session uses three subject families:
//
//	timespeed.<session>.broadcast      messages for every player
//	timespeed.<session>.player.<id>    messages for one player
//	timespeed.<session>.presence       join, hello and leave announcements
//
// NATS carries no player identity. Anyone allowed to publish on a session's
// subjects is trusted to write honest envelope senders, so deployments
// restrict those subjects with NATS account permissions. The one claim the
// bus does not take from the wire is who the host is: announcements get
// IsMainPlayer from the host id the bus was configured with.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/transport"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second

	// instanceHeader names the publishing bus so it can skip its own broadcasts.
	instanceHeader = "Timespeed-Instance"
)

var ErrClosed = errors.New("bus is closed")

// Subjects builds the subject names of one session.
type Subjects struct {
	Session string
}

func (s Subjects) Broadcast() string {
	return fmt.Sprintf("timespeed.%s.broadcast", s.Session)
}

func (s Subjects) Player(id models.PlayerID) string {
	return fmt.Sprintf("timespeed.%s.player.%d", s.Session, int64(id))
}

func (s Subjects) Presence() string {
	return fmt.Sprintf("timespeed.%s.presence", s.Session)
}

// announceKind is the presence message type on the wire.
type announceKind string

const (
	announceJoin  announceKind = "join"
	announceHello announceKind = "hello"
	announceLeave announceKind = "leave"
)

// announcement is published on the presence subject. A hello answers a join
// so the newcomer learns who is already there.
type announcement struct {
	Kind     announceKind  `json:"kind"`
	Instance string        `json:"instance"`
	Player   models.Farmer `json:"player"`
}

type publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Bus is a transport.Bus over a NATS connection.
type Bus struct {
	nc       *nats.Conn
	pub      publisher
	subjects Subjects
	self     models.Farmer
	host     models.PlayerID
	instance string

	messages chan []byte
	presence chan transport.Presence

	mu     sync.Mutex
	peers  map[models.PlayerID]string
	subs   []*nats.Subscription
	closed bool
}

// Connect dials NATS and joins the session as self. host is the id of the
// session's main player.
func Connect(ctx context.Context, url, session string, self models.Farmer, host models.PlayerID) (*Bus, error) {
	opts := []nats.Option{
		nats.Name(fmt.Sprintf("timespeed-%s-%d", session, int64(self.ID))),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	b := newBus(nc, Subjects{Session: session}, self, host)
	b.nc = nc
	if err := b.subscribe(); err != nil {
		nc.Close()
		return nil, err
	}
	if err := b.announce(announceJoin); err != nil {
		nc.Close()
		return nil, err
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("flush NATS: %w", err)
	}

	log.Info().
		Str("session_id", session).
		Str("instance", b.instance).
		Int64("player_id", int64(self.ID)).
		Msg("joined session over NATS")
	return b, nil
}

func newBus(pub publisher, subjects Subjects, self models.Farmer, host models.PlayerID) *Bus {
	self.IsMainPlayer = self.ID == host
	return &Bus{
		pub:      pub,
		subjects: subjects,
		self:     self,
		host:     host,
		instance: uuid.NewString(),
		messages: make(chan []byte, transport.InboxSize),
		presence: make(chan transport.Presence, transport.InboxSize),
		peers:    make(map[models.PlayerID]string),
	}
}

func (b *Bus) subscribe() error {
	for _, subject := range []string{
		b.subjects.Broadcast(),
		b.subjects.Player(b.self.ID),
		b.subjects.Presence(),
	} {
		sub, err := b.nc.Subscribe(subject, b.handleMessage)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}
	return nil
}

// Messages returns inbound raw mod messages.
func (b *Bus) Messages() <-chan []byte {
	return b.messages
}

// Presence returns join and leave events of other players.
func (b *Bus) Presence() <-chan transport.Presence {
	return b.presence
}

// Send publishes raw to every player when to is empty, otherwise to each listed player.
func (b *Bus) Send(_ context.Context, raw []byte, to []models.PlayerID) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if len(to) == 0 {
		return b.publish(b.subjects.Broadcast(), raw)
	}
	var errs []error
	for _, id := range to {
		if id == b.self.ID {
			continue
		}
		if err := b.publish(b.subjects.Player(id), raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) publish(subject string, data []byte) error {
	msg := nats.NewMsg(subject)
	msg.Header.Set(instanceHeader, b.instance)
	msg.Data = data
	if err := b.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (b *Bus) announce(kind announceKind) error {
	data, err := json.Marshal(announcement{Kind: kind, Instance: b.instance, Player: b.self})
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}
	return b.publish(b.subjects.Presence(), data)
}

func (b *Bus) handleMessage(msg *nats.Msg) {
	if msg.Header.Get(instanceHeader) == b.instance {
		return
	}
	if msg.Subject == b.subjects.Presence() {
		b.handlePresence(msg.Data)
		return
	}
	select {
	case b.messages <- msg.Data:
	default:
		log.Warn().Str("subject", msg.Subject).Msg("inbox full, dropping mod message")
	}
}

func (b *Bus) handlePresence(data []byte) {
	var a announcement
	if err := json.Unmarshal(data, &a); err != nil {
		log.Warn().Err(err).Msg("malformed presence announcement")
		return
	}
	if a.Player.ID == b.self.ID {
		return
	}
	if isHost := a.Player.ID == b.host; a.Player.IsMainPlayer != isHost {
		log.Warn().
			Int64("player_id", int64(a.Player.ID)).
			Int64("host_id", int64(b.host)).
			Bool("claimed_host", a.Player.IsMainPlayer).
			Msg("presence announcement disagrees with the configured host")
		a.Player.IsMainPlayer = isHost
	}

	b.mu.Lock()
	known, seen := b.peers[a.Player.ID]
	switch a.Kind {
	case announceJoin, announceHello:
		b.peers[a.Player.ID] = a.Instance
	case announceLeave:
		if seen && known == a.Instance {
			delete(b.peers, a.Player.ID)
		} else {
			seen = false
		}
	}
	b.mu.Unlock()

	if a.Kind == announceJoin {
		if err := b.announce(announceHello); err != nil {
			log.Warn().Err(err).Msg("failed to answer presence join")
		}
	}

	var event transport.Presence
	switch {
	case a.Kind == announceLeave && seen:
		event = transport.Presence{Kind: transport.PresenceLeave, Player: a.Player}
	case a.Kind != announceLeave && !(seen && known == a.Instance):
		event = transport.Presence{Kind: transport.PresenceJoin, Player: a.Player}
	default:
		return
	}

	log.Debug().
		Str("kind", string(event.Kind)).
		Int64("player_id", int64(a.Player.ID)).
		Str("instance", a.Instance).
		Msg("presence changed")

	select {
	case b.presence <- event:
	default:
		log.Warn().Int64("player_id", int64(a.Player.ID)).Msg("presence inbox full, dropping event")
	}
}

// Close announces the leave, drains the subscriptions and closes the connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.announce(announceLeave); err != nil {
		log.Warn().Err(err).Msg("failed to announce leave")
	}

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	if b.nc == nil {
		return nil
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("drain NATS: %w", err)
	}
	return nil
}
