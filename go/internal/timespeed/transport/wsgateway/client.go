package wsgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/transport"
)

// Client is the peer side of the gateway.
type Client struct {
	self   models.Farmer
	conn   *websocket.Conn
	config ConnectionConfig

	messages chan []byte
	presence chan transport.Presence
	done     chan struct{}

	writeMu sync.Mutex
	once    sync.Once
}

// Dial connects self to the host hub at hostURL (ws://host:port/ws).
func Dial(ctx context.Context, hostURL string, self models.Farmer, config ConnectionConfig) (*Client, error) {
	u, err := url.Parse(hostURL)
	if err != nil {
		return nil, fmt.Errorf("parse host url: %w", err)
	}
	q := u.Query()
	q.Set("player_id", strconv.FormatInt(int64(self.ID), 10))
	q.Set("name", self.Name)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	c := &Client{
		self:     self,
		conn:     conn,
		config:   config,
		messages: make(chan []byte, transport.InboxSize),
		presence: make(chan transport.Presence, transport.InboxSize),
		done:     make(chan struct{}),
	}
	go c.readPump()

	log.Info().
		Str("host", u.Host).
		Int64("player_id", int64(self.ID)).
		Msg("connected to host gateway")
	return c, nil
}

// Messages returns inbound raw mod messages.
func (c *Client) Messages() <-chan []byte {
	return c.messages
}

// Presence returns join and leave events relayed by the hub.
func (c *Client) Presence() <-chan transport.Presence {
	return c.presence
}

// Done is closed when the connection to the host is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send forwards raw to the hub, which routes it to the addressees.
func (c *Client) Send(_ context.Context, raw []byte, to []models.PlayerID) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := messageFrame(c.self.ID, to, raw)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Client) readPump() {
	defer c.shutdown()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("connection to host lost")
			}
			return
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			log.Warn().Err(err).Msg("malformed frame from host")
			continue
		}
		switch f.Type {
		case frameMessage:
			if err := checkSender(f.From, f.Data); err != nil {
				log.Warn().Err(err).Msg("dropping mod message with a forged sender")
				continue
			}
			select {
			case c.messages <- []byte(f.Data):
			default:
				log.Warn().Msg("inbox full, dropping mod message")
			}
		case framePresence:
			if f.Presence == nil {
				continue
			}
			select {
			case c.presence <- *f.Presence:
			default:
				log.Warn().Msg("presence inbox full, dropping event")
			}
		}
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Close sends a close frame and shuts the connection down.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}

	c.writeMu.Lock()
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	c.shutdown()
	if err != nil && err != websocket.ErrCloseSent {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
