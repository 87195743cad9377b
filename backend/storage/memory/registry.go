package memory

import "github.com/adwski/lysn/backend/model"

// registry is the connection-to-room index. It is not safe for concurrent
// use on its own: MemStore mutates it under the same lock as the rooms so
// both sides always agree.
type registry struct {
	rooms map[*model.Conn]string
}

func newRegistry() *registry {
	return &registry{
		rooms: make(map[*model.Conn]string),
	}
}

func (r *registry) associate(conn *model.Conn, roomCode string) {
	r.rooms[conn] = roomCode
}

func (r *registry) resolve(conn *model.Conn) (string, bool) {
	code, ok := r.rooms[conn]
	return code, ok
}

func (r *registry) dissociate(conn *model.Conn) {
	delete(r.rooms, conn)
}

func (r *registry) len() int {
	return len(r.rooms)
}
