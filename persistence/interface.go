// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/onoro/models"
)

// Database 数据库接口
type Database interface {
	SaveGameRecord(record *models.GameRecord) error
	RecentGames(limit int) ([]models.GameRecord, error)
	CountGames() (int64, error)
	SaveSessionStats(stats *models.SessionStats) error
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
