package game

import "github.com/katakanashi/gameserver/models"

// Broadcaster delivers an event to every live connection of a room and is
// the authority on room occupancy. Defined here to break the import cycle
// between game and broadcast.
type Broadcaster interface {
	BroadcastEvent(roomID, msgType string, payload interface{}) error

	// IfRoomEmpty 仅当房间没有存活连接时在占用锁内执行 fn，
	// 并发的 Register 不会插入到检查与 fn 之间。返回 fn 是否执行。
	IfRoomEmpty(roomID string, fn func()) bool
}

// Sender is the unicast reply surface of a single connection.
type Sender interface {
	SendEvent(msgType string, payload interface{}) error
	GetID() string
}

// Recorder archives finished games. May be left nil to disable archival.
type Recorder interface {
	ArchiveGame(record *models.GameRecord) error
}
