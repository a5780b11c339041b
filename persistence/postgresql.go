// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/katakanashi/gameserver/models"
)

// PostgreSQL 数据库实现 (database/sql)
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) NOT NULL,
            game_type VARCHAR(100) NOT NULL,
            winner VARCHAR(255) NOT NULL DEFAULT '',
            scores JSONB NOT NULL,
            rounds INT NOT NULL DEFAULT 0,
            duration INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id);
        CREATE INDEX IF NOT EXISTS idx_game_records_winner ON game_records(winner);
        CREATE INDEX IF NOT EXISTS idx_game_records_created_at ON game_records(created_at);
    `)

	return err
}

// SaveGameRecord 保存对局记录
func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	scores, err := json.Marshal(record.Scores)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO game_records (room_id, game_type, winner, scores, rounds, duration)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err = p.db.ExecContext(ctx, query,
		record.RoomID,
		record.GameType,
		record.Winner,
		scores,
		record.Rounds,
		record.Duration)

	return err
}

// GetPlayerStats 按玩家名聚合统计
func (p *PostgreSQL) GetPlayerStats(name string) (*models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// jsonb 的 ? 操作符判断 scores 是否含该玩家
	query := `
        SELECT
            COUNT(*) AS total_games,
            COUNT(*) FILTER (WHERE winner = $1) AS wins
        FROM game_records
        WHERE scores ? $1
    `

	stats := &models.PlayerStats{Name: name}
	err := p.db.QueryRowContext(ctx, query, name).Scan(&stats.TotalGames, &stats.Wins)
	if err != nil {
		return nil, err
	}
	if stats.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}
	return stats, nil
}

// GetLeaderboard 按胜场排序的排行榜
func (p *PostgreSQL) GetLeaderboard(limit int) ([]models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        SELECT
            winner,
            COUNT(*) AS wins,
            (SELECT COUNT(*) FROM game_records g2 WHERE g2.scores ? g.winner) AS total_games
        FROM game_records g
        WHERE winner <> ''
        GROUP BY winner
        ORDER BY wins DESC
        LIMIT $1
    `

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.PlayerStats
	for rows.Next() {
		var stats models.PlayerStats
		if err := rows.Scan(&stats.Name, &stats.Wins, &stats.TotalGames); err != nil {
			return nil, err
		}
		result = append(result, stats)
	}
	return result, rows.Err()
}

// ListRecentRecords 最近的对局记录
func (p *PostgreSQL) ListRecentRecords(limit int) ([]models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        SELECT room_id, game_type, winner, scores, rounds, duration, created_at
        FROM game_records
        ORDER BY created_at DESC
        LIMIT $1
    `

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.GameRecord
	for rows.Next() {
		var record models.GameRecord
		var scores []byte
		if err := rows.Scan(&record.RoomID, &record.GameType, &record.Winner,
			&scores, &record.Rounds, &record.Duration, &record.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(scores, &record.Scores); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
