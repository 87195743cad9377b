package memory

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/adwski/lysn/backend/model"
)

var (
	ErrRoomNotFound  = errors.New("room is not found")
	ErrAlreadyInRoom = errors.New("connection is already in a room")
)

type room struct {
	code         string
	hostID       string
	participants map[string]*model.Member
	order        []string // join order, drives host reassignment
	createdAt    time.Time
	audioActive  bool
}

func (r *room) roster() model.Roster {
	roster := make(model.Roster, len(r.participants))
	for id, p := range r.participants {
		roster[id] = p.ParticipantInfo
	}
	return roster
}

func (r *room) add(p *model.Member) {
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
}

func (r *room) remove(id string) {
	delete(r.participants, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *room) findByConn(conn *model.Conn) (string, bool) {
	for _, id := range r.order {
		if r.participants[id].Conn == conn {
			return id, true
		}
	}
	return "", false
}

type Config struct {
	Now           func() time.Time
	RoomCode      func() string
	ParticipantID func() string
}

// MemStore keeps rooms and the connection index in process memory.
type MemStore struct {
	mx    *sync.Mutex
	db    map[string]*room
	conns *registry

	now              func() time.Time
	newRoomCode      func() string
	newParticipantID func() string
}

func NewMemStore(cfg Config) *MemStore {
	ms := &MemStore{
		mx:               &sync.Mutex{},
		db:               make(map[string]*room),
		conns:            newRegistry(),
		now:              cfg.Now,
		newRoomCode:      cfg.RoomCode,
		newParticipantID: cfg.ParticipantID,
	}
	if ms.now == nil {
		ms.now = time.Now
	}
	if ms.newRoomCode == nil {
		ms.newRoomCode = NewRoomCode
	}
	if ms.newParticipantID == nil {
		ms.newParticipantID = NewParticipantID
	}
	return ms
}

// CreateRoom creates a room with conn's participant as its only member and host.
func (ms *MemStore) CreateRoom(displayName string, conn *model.Conn) (string, string, model.Roster, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	if _, ok := ms.conns.resolve(conn); ok {
		return "", "", nil, ErrAlreadyInRoom
	}

	code := ms.newRoomCode()
	id := ms.newParticipantID()
	r := &room{
		code:         code,
		hostID:       id,
		participants: make(map[string]*model.Member, 1),
		createdAt:    ms.now(),
	}
	r.add(&model.Member{
		ParticipantInfo: model.ParticipantInfo{
			ID:          id,
			DisplayName: displayName,
			IsHost:      true,
		},
		Conn: conn,
	})
	ms.db[code] = r
	ms.conns.associate(conn, code)
	return code, id, r.roster(), nil
}

// JoinRoom adds conn's participant to an existing room as a non-host.
func (ms *MemStore) JoinRoom(roomCode, displayName string, conn *model.Conn) (string, model.Roster, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	if _, ok := ms.conns.resolve(conn); ok {
		return "", nil, ErrAlreadyInRoom
	}
	r, ok := ms.db[roomCode]
	if !ok {
		return "", nil, ErrRoomNotFound
	}

	id := ms.newParticipantID()
	r.add(&model.Member{
		ParticipantInfo: model.ParticipantInfo{
			ID:          id,
			DisplayName: displayName,
		},
		Conn: conn,
	})
	ms.conns.associate(conn, roomCode)
	return id, r.roster(), nil
}

// RemoveConn removes the participant bound to conn. It returns false if conn
// is not in any room. An emptied room is deleted right away; if the host
// left, the earliest-joined remaining participant becomes host.
func (ms *MemStore) RemoveConn(conn *model.Conn) (model.Removal, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	code, ok := ms.conns.resolve(conn)
	if !ok {
		return model.Removal{}, false
	}
	ms.conns.dissociate(conn)

	r, ok := ms.db[code]
	if !ok {
		return model.Removal{}, false
	}
	id, ok := r.findByConn(conn)
	if !ok {
		return model.Removal{}, false
	}
	r.remove(id)

	rm := model.Removal{
		RoomCode:      code,
		ParticipantID: id,
	}
	if len(r.participants) == 0 {
		delete(ms.db, code)
		rm.Destroyed = true
		return rm, true
	}
	if id == r.hostID {
		next := r.participants[r.order[0]]
		next.IsHost = true
		r.hostID = next.ID
		rm.NewHostID = next.ID
	}
	rm.Roster = r.roster()
	return rm, true
}

// RoomOf resolves the room the connection currently belongs to.
func (ms *MemStore) RoomOf(conn *model.Conn) (string, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	return ms.conns.resolve(conn)
}

// ParticipantID returns the id of conn's participant within the room.
func (ms *MemStore) ParticipantID(roomCode string, conn *model.Conn) (string, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	r, ok := ms.db[roomCode]
	if !ok {
		return "", false
	}
	return r.findByConn(conn)
}

// Members returns room participants in join order.
func (ms *MemStore) Members(roomCode string) []model.Member {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	r, ok := ms.db[roomCode]
	if !ok {
		return nil
	}
	members := make([]model.Member, 0, len(r.order))
	for _, id := range r.order {
		members = append(members, *r.participants[id])
	}
	return members
}

func (ms *MemStore) Member(roomCode, participantID string) (model.Member, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	r, ok := ms.db[roomCode]
	if !ok {
		return model.Member{}, false
	}
	p, ok := r.participants[participantID]
	if !ok {
		return model.Member{}, false
	}
	return *p, true
}

func (ms *MemStore) Roster(roomCode string) (model.Roster, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	r, ok := ms.db[roomCode]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.roster(), nil
}

func (ms *MemStore) SetAudioActive(roomCode string, active bool) error {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	r, ok := ms.db[roomCode]
	if !ok {
		return ErrRoomNotFound
	}
	r.audioActive = active
	return nil
}

func (ms *MemStore) IsAudioActive(roomCode string) bool {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	r, ok := ms.db[roomCode]
	return ok && r.audioActive
}

// Rooms returns a summary of every live room ordered by creation time.
func (ms *MemStore) Rooms() []model.RoomInfo {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	rooms := make([]model.RoomInfo, 0, len(ms.db))
	for _, r := range ms.db {
		rooms = append(rooms, model.RoomInfo{
			Code:         r.code,
			HostID:       r.hostID,
			Participants: len(r.participants),
			CreatedAt:    r.createdAt,
			AudioActive:  r.audioActive,
		})
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

func (ms *MemStore) Stats() model.Stats {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	return model.Stats{
		Rooms:       len(ms.db),
		Connections: ms.conns.len(),
	}
}

// DeleteStale drops empty rooms created before the given time and returns
// their codes. Rooms are normally deleted as soon as they empty, so this
// only catches rooms left behind by a bug.
func (ms *MemStore) DeleteStale(createdBefore time.Time) []string {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	var deleted []string
	for code, r := range ms.db {
		if len(r.participants) == 0 && r.createdAt.Before(createdBefore) {
			delete(ms.db, code)
			deleted = append(deleted, code)
		}
	}
	return deleted
}
