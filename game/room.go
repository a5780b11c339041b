// game/room.go
package game

import (
	"sync"
	"time"

	"github.com/katakanashi/gameserver/models"
)

// RoomStatus 表示房间的对局状态
type RoomStatus int

const (
	StatusAwaitingAnswer RoomStatus = iota
	StatusFinished
)

// Room 是一局游戏的核心结构。Users 按加入顺序排列，顺序决定出题者轮换；
// Scores 的键集合与 Users 始终一致。所有字段都由持有 mutex 的引擎操作修改。
type Room struct {
	ID             string
	Users          []string
	Scores         map[string]int
	PresenterIndex int
	CurrentWord    string
	AnswerAttempts map[string]int
	TimerEnd       time.Time
	TimerID        int64
	Status         RoomStatus
	Winner         string
	Rounds         int
	CreatedAt      time.Time

	mutex sync.Mutex
}

func newRoom(id, word string) *Room {
	return &Room{
		ID:             id,
		Scores:         make(map[string]int),
		CurrentWord:    word,
		AnswerAttempts: make(map[string]int),
		Status:         StatusAwaitingAnswer,
		Rounds:         1,
		CreatedAt:      time.Now(),
	}
}

// hasUser reports whether name is already in the join-ordered user list.
func (r *Room) hasUser(name string) bool {
	for _, u := range r.Users {
		if u == name {
			return true
		}
	}
	return false
}

// presenter returns the current presenter, or "" when the room is empty.
func (r *Room) presenter() string {
	if len(r.Users) == 0 {
		return ""
	}
	return r.Users[r.PresenterIndex]
}

// snapshot 生成广播用状态快照，map/slice 均为副本
func (r *Room) snapshot() *models.RoomSnapshot {
	users := make([]string, len(r.Users))
	copy(users, r.Users)

	scores := make(map[string]int, len(r.Scores))
	for k, v := range r.Scores {
		scores[k] = v
	}

	attempts := make(map[string]int, len(r.AnswerAttempts))
	for k, v := range r.AnswerAttempts {
		attempts[k] = v
	}

	return &models.RoomSnapshot{
		Users:          users,
		CurrentWord:    r.CurrentWord,
		PresenterIndex: r.PresenterIndex,
		Scores:         scores,
		TimerEnd:       r.TimerEnd.Unix(),
		AnswerAttempts: attempts,
		GameOver:       r.Status == StatusFinished,
		Winner:         r.Winner,
	}
}

// --- 房间管理器 ---

// Manager owns the roomID -> Room mapping. Rooms are created on first join
// and removed when their last connection goes away; there is no idle reaping.
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the room for id, creating it with newFn when absent.
// The bool reports whether a new room was created.
func (m *Manager) GetOrCreate(id string, newFn func() *Room) (*Room, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		return room, false
	}
	room := newFn()
	m.rooms[id] = room
	return room, true
}

func (m *Manager) Get(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Remove deletes the room and returns it so the caller can cancel its timer.
func (m *Manager) Remove(id string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[id]
	if !exists {
		return nil
	}
	delete(m.rooms, id)
	return room
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
