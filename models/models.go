// models/models.go
package models

import (
	"time"
)

// GameRecord 记录每一局通过 new_game 下发的对局
type GameRecord struct {
	GameID    string    `json:"game_id"`
	SessionID string    `json:"session_id"`
	TurnNum   uint32    `json:"turn_num"`
	State     []byte    `json:"state"` // 编码后的棋盘快照
	CreatedAt time.Time `json:"created_at"`
}

// SessionStats 连接统计
type SessionStats struct {
	SessionID   string    `json:"session_id"`
	RemoteAddr  string    `json:"remote_addr"`
	GamesServed int       `json:"games_served"`
	ConnectedAt time.Time `json:"connected_at"`
	ClosedAt    time.Time `json:"closed_at"`
}
