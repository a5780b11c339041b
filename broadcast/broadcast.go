// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"sync"

	"github.com/katakanashi/gameserver/logger"
	"github.com/katakanashi/gameserver/network"
	"github.com/katakanashi/gameserver/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// Hub tracks which live connections belong to which room and delivers
// outbound events. A failed send prunes that connection and never aborts
// delivery to the rest of the room.
type Hub struct {
	rooms map[string]map[string]*session.Session // roomID -> sessionID -> session
	mutex sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*session.Session),
	}
}

// Register 把连接挂到房间的连接集合上
func (h *Hub) Register(roomID string, s *session.Session) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.rooms[roomID]
	if !exists {
		conns = make(map[string]*session.Session)
		h.rooms[roomID] = conns
	}
	conns[s.ID] = s
}

// Unregister removes the connection and returns how many connections the
// room still has. Zero means the room should be destroyed by the caller.
func (h *Hub) Unregister(roomID string, s *session.Session) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.rooms[roomID]
	if !exists {
		return 0
	}
	delete(conns, s.ID)
	if len(conns) == 0 {
		delete(h.rooms, roomID)
		return 0
	}
	return len(conns)
}

// BroadcastToRoom 向房间内所有连接投递消息，发送失败的连接视为断线并剔除
func (h *Hub) BroadcastToRoom(roomID string, msg *network.Message) error {
	h.mutex.RLock()
	conns, exists := h.rooms[roomID]
	if !exists {
		h.mutex.RUnlock()
		return ErrRoomNotFound
	}
	sessions := make([]*session.Session, 0, len(conns))
	for _, s := range conns {
		sessions = append(sessions, s)
	}
	h.mutex.RUnlock()

	var dead []*session.Session
	for _, s := range sessions {
		if err := s.Send(msg); err != nil {
			dead = append(dead, s)
		}
	}

	for _, s := range dead {
		logger.Log.Infof("Pruning dead connection %s from room %s", s.ID, roomID)
		h.prune(roomID, s)
	}

	return nil
}

// BroadcastEvent marshals payload and broadcasts it as a msgType envelope.
func (h *Hub) BroadcastEvent(roomID, msgType string, payload interface{}) error {
	msg, err := network.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return h.BroadcastToRoom(roomID, msg)
}

func (h *Hub) prune(roomID string, s *session.Session) {
	h.mutex.Lock()
	if conns, exists := h.rooms[roomID]; exists {
		delete(conns, s.ID)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mutex.Unlock()

	s.Close()
}

// IfRoomEmpty runs fn under the hub lock, but only while the room has no
// live connections; a concurrent Register cannot slip in between the check
// and fn. Reports whether fn ran. fn must not call back into the hub.
func (h *Hub) IfRoomEmpty(roomID string, fn func()) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if len(h.rooms[roomID]) > 0 {
		return false
	}
	fn()
	return true
}

// ConnectionCount 房间当前连接数
func (h *Hub) ConnectionCount(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomID])
}

// RoomCount returns the number of rooms with at least one live connection.
func (h *Hub) RoomCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms)
}
