// models/models.go
package models

import (
	"time"
)

// RoomSnapshot 房间状态快照（用于 state_update / time_up / game_over 广播）
type RoomSnapshot struct {
	Users          []string       `json:"users"`
	CurrentWord    string         `json:"current_word"`
	PresenterIndex int            `json:"presenter_index"`
	Scores         map[string]int `json:"scores"`
	TimerEnd       int64          `json:"timer_end"` // Unix seconds
	AnswerAttempts map[string]int `json:"answer_attempts"`
	GameOver       bool           `json:"game_over"`
	Winner         string         `json:"winner,omitempty"`
}

// GameRecord 一局游戏的归档记录
type GameRecord struct {
	RoomID    string         `json:"room_id"`
	GameType  string         `json:"game_type"`
	Winner    string         `json:"winner"`
	Scores    map[string]int `json:"scores"`
	Rounds    int            `json:"rounds"`
	Duration  int            `json:"duration"` // 游戏时长(秒)
	CreatedAt time.Time      `json:"created_at"`
}

// PlayerStats 玩家统计信息（聚合自归档记录）
type PlayerStats struct {
	Name       string `json:"name"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
}
