package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mcdev12/timespeed/go/internal/models"
)

// Role is which side of the session this process plays.
type Role string

const (
	RoleHost Role = "host"
	RolePeer Role = "peer"
)

// Transport selects the network carrying mod messages.
type Transport string

const (
	TransportNATS      Transport = "nats"
	TransportWebSocket Transport = "ws"
)

var (
	ErrInvalidRole      = errors.New("role must be host or peer")
	ErrInvalidTransport = errors.New("transport must be nats or ws")
	ErrMissingPlayerID  = errors.New("player id is required")
	ErrMissingHostID    = errors.New("host id is required for NATS peers")
)

// Settings is the per-process configuration read from the environment.
type Settings struct {
	Role        Role          `env:"TIMESPEED_ROLE" envDefault:"host"`
	PlayerID    int64         `env:"TIMESPEED_PLAYER_ID"`
	PlayerName  string        `env:"TIMESPEED_PLAYER_NAME" envDefault:"Farmer"`
	HostID      int64         `env:"TIMESPEED_HOST_ID"`
	SessionID   string        `env:"TIMESPEED_SESSION_ID" envDefault:"local"`
	ModID       string        `env:"TIMESPEED_MOD_ID" envDefault:"cantorsdust.TimeSpeed"`
	Transport   Transport     `env:"TIMESPEED_TRANSPORT" envDefault:"nats"`
	NATSURL     string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	WSAddr      string        `env:"TIMESPEED_WS_ADDR" envDefault:":8090"`
	WSHostURL   string        `env:"TIMESPEED_WS_HOST_URL" envDefault:"ws://localhost:8090/ws"`
	ConfigPath  string        `env:"TIMESPEED_CONFIG_PATH" envDefault:"config.yaml"`
	DatabaseURL string        `env:"DATABASE_URL"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	TickRate    time.Duration `env:"TIMESPEED_TICK_RATE" envDefault:"16ms"`
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (*Settings, error) {
	s, err := env.ParseAs[Settings]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the fields env tags cannot express.
func (s Settings) Validate() error {
	switch s.Role {
	case RoleHost, RolePeer:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, s.Role)
	}
	switch s.Transport {
	case TransportNATS, TransportWebSocket:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransport, s.Transport)
	}
	if s.PlayerID == 0 {
		return ErrMissingPlayerID
	}
	if s.Role == RolePeer && s.Transport == TransportNATS && s.HostID == 0 {
		return ErrMissingHostID
	}
	return nil
}

// IsHost reports whether this process runs the main player.
func (s Settings) IsHost() bool {
	return s.Role == RoleHost
}

// Player returns the local player id.
func (s Settings) Player() models.PlayerID {
	return models.PlayerID(s.PlayerID)
}

// Host returns the id of the session's main player: the local player on the
// host, TIMESPEED_HOST_ID on a peer.
func (s Settings) Host() models.PlayerID {
	if s.IsHost() {
		return s.Player()
	}
	return models.PlayerID(s.HostID)
}
