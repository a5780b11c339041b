// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/katakanashi/gameserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// GameRecordModel 对局记录GORM模型
type GameRecordModel struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    string         `gorm:"index;not null"`
	GameType  string         `gorm:"not null"`
	Winner    string         `gorm:"index;not null;default:''"`
	Scores    map[string]int `gorm:"type:jsonb;serializer:json"`
	Rounds    int            `gorm:"not null;default:0"`
	Duration  int            `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (GameRecordModel) TableName() string {
	return "game_records"
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&GameRecordModel{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveGameRecord 保存对局记录
func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	row := GameRecordModel{
		RoomID:   record.RoomID,
		GameType: record.GameType,
		Winner:   record.Winner,
		Scores:   record.Scores,
		Rounds:   record.Rounds,
		Duration: record.Duration,
	}
	return p.db.Create(&row).Error
}

// GetPlayerStats 按玩家名聚合统计
func (p *GormPostgreSQL) GetPlayerStats(name string) (*models.PlayerStats, error) {
	stats := &models.PlayerStats{Name: name}

	// jsonb 的 ? 操作符与占位符冲突，改用函数形式
	err := p.db.Raw(`
        SELECT
            COUNT(*) AS total_games,
            COUNT(*) FILTER (WHERE winner = ?) AS wins
        FROM game_records
        WHERE jsonb_exists(scores, ?)`,
		name, name,
	).Row().Scan(&stats.TotalGames, &stats.Wins)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if stats.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}
	return stats, nil
}

// GetLeaderboard 按胜场排序的排行榜
func (p *GormPostgreSQL) GetLeaderboard(limit int) ([]models.PlayerStats, error) {
	var result []models.PlayerStats

	err := p.db.Raw(`
        SELECT
            winner AS name,
            COUNT(*) AS wins,
            (SELECT COUNT(*) FROM game_records g2 WHERE jsonb_exists(g2.scores, g.winner)) AS total_games
        FROM game_records g
        WHERE winner <> ''
        GROUP BY winner
        ORDER BY wins DESC
        LIMIT ?`,
		limit,
	).Scan(&result).Error

	return result, err
}

// ListRecentRecords 最近的对局记录
func (p *GormPostgreSQL) ListRecentRecords(limit int) ([]models.GameRecord, error) {
	var rows []GameRecordModel
	if err := p.db.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, models.GameRecord{
			RoomID:    row.RoomID,
			GameType:  row.GameType,
			Winner:    row.Winner,
			Scores:    row.Scores,
			Rounds:    row.Rounds,
			Duration:  row.Duration,
			CreatedAt: row.CreatedAt,
		})
	}
	return result, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
