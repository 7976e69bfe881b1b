package memory

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/adwski/scenesync/backend/model"
	"github.com/google/uuid"
)

const (
	defaultRoomIDLength = 8 // hex chars, 32 bits
)

var (
	ErrRoomNotFound = errors.New("room is not found")
	ErrNotAMember   = errors.New("connection is not a member of any room")
)

type room struct {
	id      string
	members map[string]struct{}
}

// MemStore is the room registry. Membership and the connection -> room
// association live under one mutex, so a room is never observable with
// zero members.
type MemStore struct {
	mx     *sync.Mutex
	db     map[string]*room
	member map[string]string // connID -> roomID
	newID  func() string
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx:     &sync.Mutex{},
		db:     make(map[string]*room),
		member: make(map[string]string),
		newID:  randomRoomID,
	}
}

func randomRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:defaultRoomIDLength]
}

// CreateRoom makes a new room with connID as its only member. If connID was
// in another room it leaves that room first; prev reports that room and
// whether it was deleted as a result.
func (ms *MemStore) CreateRoom(connID string) (roomID string, prev model.Departure) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	prev = ms.leave(connID)

	roomID = ms.newID()
	for {
		if _, ok := ms.db[roomID]; !ok {
			break
		}
		roomID = ms.newID()
	}
	ms.db[roomID] = &room{
		id:      roomID,
		members: map[string]struct{}{connID: {}},
	}
	ms.member[connID] = roomID
	return roomID, prev
}

// JoinRoom adds connID to an existing room. Joining the room the connection
// is already in is a no-op.
func (ms *MemStore) JoinRoom(roomID, connID string) (model.Departure, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	r, ok := ms.db[roomID]
	if !ok {
		return model.Departure{}, ErrRoomNotFound
	}
	if ms.member[connID] == roomID {
		return model.Departure{}, nil
	}
	prev := ms.leave(connID)
	r.members[connID] = struct{}{}
	ms.member[connID] = roomID
	return prev, nil
}

// LeaveRoom drops connID from its room, deleting the room when it empties.
func (ms *MemStore) LeaveRoom(connID string) (model.Departure, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	dep := ms.leave(connID)
	if dep.RoomID == "" {
		return dep, ErrNotAMember
	}
	return dep, nil
}

func (ms *MemStore) leave(connID string) model.Departure {
	roomID, ok := ms.member[connID]
	if !ok {
		return model.Departure{}
	}
	delete(ms.member, connID)

	dep := model.Departure{RoomID: roomID}
	r, ok := ms.db[roomID]
	if !ok {
		return dep
	}
	delete(r.members, connID)
	if len(r.members) == 0 {
		delete(ms.db, roomID)
		dep.Deleted = true
	}
	return dep
}

// Peers returns the room of connID and every other member of it.
func (ms *MemStore) Peers(connID string) (string, []string, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	roomID, ok := ms.member[connID]
	if !ok {
		return "", nil, ErrNotAMember
	}
	r, ok := ms.db[roomID]
	if !ok {
		return "", nil, ErrRoomNotFound
	}
	peers := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != connID {
			peers = append(peers, id)
		}
	}
	return roomID, peers, nil
}

func (ms *MemStore) RoomOf(connID string) (string, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	roomID, ok := ms.member[connID]
	return roomID, ok
}

func (ms *MemStore) GetRoom(roomID string) (model.RoomInfo, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	r, ok := ms.db[roomID]
	if !ok {
		return model.RoomInfo{}, ErrRoomNotFound
	}
	return model.RoomInfo{ID: r.id, Members: len(r.members)}, nil
}

func (ms *MemStore) ListRooms() []model.RoomInfo {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	rooms := make([]model.RoomInfo, 0, len(ms.db))
	for _, r := range ms.db {
		rooms = append(rooms, model.RoomInfo{ID: r.id, Members: len(r.members)})
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

func (ms *MemStore) Len() int {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	return len(ms.db)
}
