// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/katakanashi/gameserver/models"
)

// Database 归档存储接口。只保存已结束对局的记录，
// 进行中的房间状态从不落盘。
type Database interface {
	SaveGameRecord(record *models.GameRecord) error
	GetPlayerStats(name string) (*models.PlayerStats, error)
	GetLeaderboard(limit int) ([]models.PlayerStats, error)
	ListRecentRecords(limit int) ([]models.GameRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
