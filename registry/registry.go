package registry

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/srt-2000/chatrelay/model"
)

// Member is one registered participant of a room together with its wire.
type Member struct {
	UserID int64
	Wire   model.Wire
}

// Registry tracks which live connections belong to which room. It is the
// single shared structure touched by every connection's receive loop, so
// all access goes through one mutex.
type Registry struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	rooms  map[int64]map[int64]model.Wire
}

func New(logger *zerolog.Logger) *Registry {
	return &Registry{
		logger: logger.With().Str("component", "registry").Logger(),
		mx:     &sync.RWMutex{},
		rooms:  make(map[int64]map[int64]model.Wire),
	}
}

// Register stores wire under (roomID, userID), creating the room entry on
// first use. A prior wire registered for the same pair is replaced and its
// Done channel is closed, which tells the old session to shut itself down.
func (r *Registry) Register(roomID, userID int64, wire model.Wire) {
	r.mx.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[int64]model.Wire)
		r.rooms[roomID] = room
	}
	prev, replaced := room[userID]
	room[userID] = wire
	r.mx.Unlock()

	// Re-registering the current wire must not tear the session down.
	if replaced && prev != wire {
		close(prev.Done)
		r.logger.Warn().
			Int64("roomID", roomID).
			Int64("userID", userID).
			Msg("participant reconnected, previous session replaced")
	}
	r.logger.Debug().
		Int64("roomID", roomID).
		Int64("userID", userID).
		Msg("participant registered")
}

// Deregister removes the participant's entry and drops the room entry the
// moment it empties. Unknown rooms and participants are a no-op.
func (r *Registry) Deregister(roomID, userID int64) {
	r.mx.Lock()
	r.remove(roomID, userID)
	r.mx.Unlock()

	r.logger.Debug().
		Int64("roomID", roomID).
		Int64("userID", userID).
		Msg("participant deregistered")
}

// Release removes the participant's entry only if wire is still the
// registered one. The transport cleanup path uses it so that a session
// which was replaced by a reconnect cannot deregister its replacement.
// Reports whether an entry was removed.
func (r *Registry) Release(roomID, userID int64, wire model.Wire) bool {
	r.mx.Lock()
	defer r.mx.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if cur, ok := room[userID]; !ok || cur != wire {
		return false
	}
	r.remove(roomID, userID)
	return true
}

// remove is the unguarded removal; callers hold the lock.
func (r *Registry) remove(roomID, userID int64) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
}

// Lookup returns a snapshot of the room's members. The snapshot is taken
// atomically with respect to Register/Deregister; callers may send on the
// wires without holding any registry lock. Unknown rooms yield nil.
func (r *Registry) Lookup(roomID int64) []Member {
	r.mx.RLock()
	defer r.mx.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]Member, 0, len(room))
	for userID, wire := range room {
		members = append(members, Member{UserID: userID, Wire: wire})
	}
	return members
}

// Rooms returns the number of rooms with at least one participant.
func (r *Registry) Rooms() int {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.rooms)
}

// Participants returns the number of participants currently in roomID.
func (r *Registry) Participants(roomID int64) int {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.rooms[roomID])
}
