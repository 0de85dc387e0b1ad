package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/srt-2000/chatrelay/model"
)

type (
	RoomRegistry interface {
		Register(roomID, userID int64, wire model.Wire)
		Release(roomID, userID int64, wire model.Wire) bool
	}

	Broadcaster interface {
		Broadcast(ctx context.Context, text string, roomID, senderID int64) error
	}

	// Service ties the registry and the broadcast engine together into
	// chat sessions: register, announce, relay inbound frames, announce
	// departure on teardown.
	Service struct {
		reg    RoomRegistry
		engine Broadcaster
		logger zerolog.Logger
	}

	Config struct {
		Registry    RoomRegistry
		Broadcaster Broadcaster
		Logger      *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		reg:    cfg.Registry,
		engine: cfg.Broadcaster,
		logger: cfg.Logger.With().Str("component", "chat").Logger(),
	}
}

// CreateSession registers the wire, announces the arrival to the room and
// starts the relay loop that broadcasts every inbound frame. Announcements
// and relayed messages are broadcast synchronously so each recipient sees
// one participant's messages in the order they were produced. The caller
// must already be consuming wire.TX: the arrival notice is delivered to
// the joiner too.
func (svc *Service) CreateSession(ctx context.Context, roomID, userID int64, username string, wire model.Wire) {
	svc.reg.Register(roomID, userID, wire)
	svc.logger.Debug().
		Int64("roomID", roomID).
		Int64("userID", userID).
		Str("username", username).
		Msg("chat session created")

	_ = svc.engine.Broadcast(ctx, fmt.Sprintf("%s (ID: %d) connected to the chat.", username, userID), roomID, userID)

	go svc.relay(ctx, roomID, userID, username, wire.RX)
}

// DeleteSession removes the wire from the registry and, if it was still
// the registered one, announces the departure. A session that was replaced
// by a reconnect leaves silently: its participant is still in the room.
func (svc *Service) DeleteSession(ctx context.Context, roomID, userID int64, username string, wire model.Wire) {
	if !svc.reg.Release(roomID, userID, wire) {
		svc.logger.Debug().
			Int64("roomID", roomID).
			Int64("userID", userID).
			Msg("session already replaced, skipping departure notice")
		return
	}
	svc.logger.Debug().
		Int64("roomID", roomID).
		Int64("userID", userID).
		Str("username", username).
		Msg("chat session deleted")

	_ = svc.engine.Broadcast(ctx, fmt.Sprintf("%s (ID: %d) disconnected from chat.", username, userID), roomID, userID)
}

// relay consumes inbound text frames and broadcasts each one to the room,
// prefixed with the sender's display name.
func (svc *Service) relay(ctx context.Context, roomID, userID int64, username string, rx <-chan string) {
relayLoop:
	for {
		select {
		case <-ctx.Done():
			break relayLoop
		case text, ok := <-rx:
			if !ok {
				break relayLoop
			}
			_ = svc.engine.Broadcast(ctx, fmt.Sprintf("%s (ID: %d): %s", username, userID, text), roomID, userID)
		}
	}
}
