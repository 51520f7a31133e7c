// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/onoro/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// 定义GORM模型
type GameRecordModel struct {
	ID        uint   `gorm:"primaryKey"`
	GameID    string `gorm:"uniqueIndex;not null"`
	SessionID string `gorm:"index;not null"`
	TurnNum   uint32 `gorm:"not null"`
	State     []byte `gorm:"not null"`
	CreatedAt time.Time
}

type SessionStatsModel struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"uniqueIndex;not null"`
	RemoteAddr  string `gorm:"not null"`
	GamesServed int    `gorm:"not null"`
	ConnectedAt time.Time
	ClosedAt    time.Time
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&GameRecordModel{},
		&SessionStatsModel{},
	)
}

// SaveGameRecord 保存对局记录
func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	return p.db.Create(&GameRecordModel{
		GameID:    record.GameID,
		SessionID: record.SessionID,
		TurnNum:   record.TurnNum,
		State:     record.State,
	}).Error
}

// RecentGames 查询最近的对局
func (p *GormPostgreSQL) RecentGames(limit int) ([]models.GameRecord, error) {
	var rows []GameRecordModel
	if err := p.db.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.GameRecord{
			GameID:    row.GameID,
			SessionID: row.SessionID,
			TurnNum:   row.TurnNum,
			State:     row.State,
			CreatedAt: row.CreatedAt,
		})
	}
	return records, nil
}

// CountGames 统计对局总数
func (p *GormPostgreSQL) CountGames() (int64, error) {
	var count int64
	err := p.db.Model(&GameRecordModel{}).Count(&count).Error
	return count, err
}

// SaveSessionStats 保存连接统计
func (p *GormPostgreSQL) SaveSessionStats(stats *models.SessionStats) error {
	var row SessionStatsModel
	result := p.db.Where("session_id = ?", stats.SessionID).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		// 创建新记录
		row = SessionStatsModel{
			SessionID:   stats.SessionID,
			RemoteAddr:  stats.RemoteAddr,
			GamesServed: stats.GamesServed,
			ConnectedAt: stats.ConnectedAt,
			ClosedAt:    stats.ClosedAt,
		}
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	// 更新现有记录
	row.GamesServed = stats.GamesServed
	row.ClosedAt = stats.ClosedAt
	return p.db.Save(&row).Error
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// 添加事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}
