// services/record_service.go
package services

import (
	"fmt"

	"github.com/katakanashi/gameserver/models"
	"github.com/katakanashi/gameserver/persistence"
)

// RecordService 对局归档与统计查询
type RecordService struct {
	db persistence.Database
}

func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

// ArchiveGame 归档一局已结束的游戏
func (s *RecordService) ArchiveGame(record *models.GameRecord) error {
	if record == nil || record.RoomID == "" {
		return fmt.Errorf("invalid game record")
	}
	return s.db.SaveGameRecord(record)
}

// GetPlayerStats 获取玩家的累计战绩
func (s *RecordService) GetPlayerStats(name string) (*models.PlayerStats, error) {
	if name == "" {
		return nil, fmt.Errorf("player name is empty")
	}
	return s.db.GetPlayerStats(name)
}

// GetLeaderboard 获取胜场排行榜
func (s *RecordService) GetLeaderboard(limit int) ([]models.PlayerStats, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.db.GetLeaderboard(limit)
}

// GetRecentGames 获取最近结束的对局
func (s *RecordService) GetRecentGames(limit int) ([]models.GameRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.db.ListRecentRecords(limit)
}
