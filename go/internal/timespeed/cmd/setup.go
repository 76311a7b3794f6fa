package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/dbconfig"
	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/ledger"
	"github.com/mcdev12/timespeed/go/internal/timespeed/sim"
	"github.com/mcdev12/timespeed/go/internal/timespeed/transport"
	"github.com/mcdev12/timespeed/go/internal/timespeed/transport/natsbus"
	"github.com/mcdev12/timespeed/go/internal/timespeed/transport/wsgateway"
)

func farmer(s *config.Settings) models.Farmer {
	return models.Farmer{
		ID:           s.Player(),
		Name:         s.PlayerName,
		IsMainPlayer: s.IsHost(),
	}
}

func connectBus(ctx context.Context, s *config.Settings, self models.Farmer) (transport.Bus, error) {
	switch s.Transport {
	case config.TransportNATS:
		return natsbus.Connect(ctx, s.NATSURL, s.SessionID, self, s.Host())
	case config.TransportWebSocket:
		if s.IsHost() {
			return wsgateway.NewHub(self, wsgateway.DefaultConnectionConfig()), nil
		}
		return wsgateway.Dial(ctx, s.WSHostURL, self, wsgateway.DefaultConnectionConfig())
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidTransport, s.Transport)
	}
}

// hostServer returns the HTTP server for a WebSocket host, nil otherwise.
func hostServer(s *config.Settings, bus transport.Bus, loop *sim.Loop) *http.Server {
	hub, ok := bus.(*wsgateway.Hub)
	if !ok {
		return nil
	}
	return wsgateway.NewServer(s.WSAddr, hub, func() any { return loop.Snapshot() })
}

// hostGone returns a channel closed when a peer loses its host connection.
func hostGone(bus transport.Bus) <-chan struct{} {
	if c, ok := bus.(*wsgateway.Client); ok {
		return c.Done()
	}
	return nil
}

func openLedger(ctx context.Context, s *config.Settings) (*ledger.Repository, func(), error) {
	dsn := dbconfig.Config{URL: s.DatabaseURL}.DSN()
	database, err := ledger.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	repo := ledger.NewRepository(database, s.SessionID)
	if err := repo.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	log.Info().Str("session_id", s.SessionID).Msg("ledger enabled")
	return repo, func() { database.Close() }, nil
}
