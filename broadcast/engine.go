package broadcast

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/srt-2000/chatrelay/model"
	"github.com/srt-2000/chatrelay/registry"
)

const (
	defaultSendTimeout = time.Second
)

// RoomLookup is the registry view the engine needs: an atomic snapshot of
// a room's members.
type RoomLookup interface {
	Lookup(roomID int64) []registry.Member
}

type Engine struct {
	logger      zerolog.Logger
	reg         RoomLookup
	sendTimeout time.Duration
}

type Config struct {
	Logger *zerolog.Logger
	Lookup RoomLookup

	// SendTimeout bounds how long one recipient may stall its delivery.
	// Zero means the default of one second.
	SendTimeout time.Duration
}

func NewEngine(cfg Config) *Engine {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Engine{
		logger:      cfg.Logger.With().Str("component", "broadcast").Logger(),
		reg:         cfg.Lookup,
		sendTimeout: timeout,
	}
}

// Broadcast delivers text to every participant currently in roomID. Each
// recipient gets its own message with IsSelf set when its id equals
// senderID. Deliveries are independent: a dead or stalled recipient is
// logged and skipped, never stopping the fan-out. An empty room is a no-op.
func (e *Engine) Broadcast(ctx context.Context, text string, roomID, senderID int64) error {
	members := e.reg.Lookup(roomID)

	var sent bool
	for _, m := range members {
		msg := model.Message{
			Text:   text,
			IsSelf: m.UserID == senderID,
		}
		msgSent, canceled := e.send(ctx, msg, roomID, m)
		if canceled {
			break
		}
		if msgSent {
			sent = true
		}
	}

	if !sent {
		e.logger.Debug().
			Int64("roomID", roomID).
			Int64("senderID", senderID).
			Msg("broadcast did not reach anyone")
	}
	return nil
}

// send pushes msg onto the member's TX, giving up after the send timeout
// so a slow consumer cannot hold the fan-out hostage. Reports whether the
// message was delivered and whether the whole broadcast was canceled via ctx.
func (e *Engine) send(ctx context.Context, msg model.Message, roomID int64, m registry.Member) (bool, bool) {
	var sent, canceled bool
	tCh := time.NewTimer(e.sendTimeout)
	defer tCh.Stop()

	select {
	case <-ctx.Done():
		canceled = true
	case <-m.Wire.Done:
		e.logger.Debug().
			Int64("roomID", roomID).
			Int64("userID", m.UserID).
			Msg("skipping replaced session")
	case <-tCh.C:
		e.logger.Error().
			Int64("roomID", roomID).
			Int64("userID", m.UserID).
			Msg("dead endpoint")
	case m.Wire.TX <- msg:
		sent = true
	}
	return sent, canceled
}
