// services/game_service.go
package services

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wfunc/onoro/game"
	"github.com/wfunc/onoro/models"
	"github.com/wfunc/onoro/persistence"
)

// GameService 负责对局记录与统计。db 可以为 nil，此时只在内存中计数。
type GameService struct {
	db     persistence.Database
	log    *zap.SugaredLogger
	served atomic.Int64
}

func NewGameService(db persistence.Database, log *zap.SugaredLogger) *GameService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &GameService{db: db, log: log}
}

// RecordNewGame 为一次 new_game 调用生成对局ID并落库
func (s *GameService) RecordNewGame(sessionID string, state game.State, encoded []byte) string {
	gameID := uuid.New().String()
	s.served.Add(1)

	if s.db != nil {
		record := &models.GameRecord{
			GameID:    gameID,
			SessionID: sessionID,
			TurnNum:   state.TurnNum,
			State:     encoded,
			CreatedAt: time.Now(),
		}
		if err := s.db.SaveGameRecord(record); err != nil {
			// 记录失败不影响对局下发
			s.log.Warnw("failed to save game record", "game_id", gameID, "error", err)
		}
	}

	return gameID
}

// RecordSessionClosed 连接断开时保存统计
func (s *GameService) RecordSessionClosed(stats *models.SessionStats) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveSessionStats(stats); err != nil {
		s.log.Warnw("failed to save session stats", "session_id", stats.SessionID, "error", err)
	}
}

// GamesServed 返回本进程启动以来下发的对局数
func (s *GameService) GamesServed() int64 {
	return s.served.Load()
}

// TotalGames 返回库中的对局总数，无数据库时返回内存计数
func (s *GameService) TotalGames() (int64, error) {
	if s.db == nil {
		return s.served.Load(), nil
	}
	return s.db.CountGames()
}

// RecentGames 查询最近的对局记录
func (s *GameService) RecentGames(limit int) ([]models.GameRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.RecentGames(limit)
}
