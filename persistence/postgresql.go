// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/onoro/models"
)

// PostgreSQL 数据库实现
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
	// 对局记录表
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(64) UNIQUE NOT NULL,
            session_id VARCHAR(64) NOT NULL,
            turn_num INTEGER NOT NULL,
            state BYTEA NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 连接统计表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS session_stats (
            id SERIAL PRIMARY KEY,
            session_id VARCHAR(64) UNIQUE NOT NULL,
            remote_addr VARCHAR(255) NOT NULL,
            games_served INTEGER NOT NULL,
            connected_at TIMESTAMP NOT NULL,
            closed_at TIMESTAMP NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_game_records_session_id ON game_records(session_id);
        CREATE INDEX IF NOT EXISTS idx_game_records_created_at ON game_records(created_at);
    `)

	return err
}

// SaveGameRecord 保存对局记录
func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO game_records (game_id, session_id, turn_num, state)
        VALUES ($1, $2, $3, $4)
    `

	_, err := p.db.ExecContext(ctx, query,
		record.GameID, record.SessionID, record.TurnNum, record.State)
	return err
}

// RecentGames 查询最近的对局
func (p *PostgreSQL) RecentGames(limit int) ([]models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        SELECT game_id, session_id, turn_num, state, created_at
        FROM game_records ORDER BY created_at DESC LIMIT $1
    `

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var r models.GameRecord
		if err := rows.Scan(&r.GameID, &r.SessionID, &r.TurnNum, &r.State, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountGames 统计对局总数
func (p *PostgreSQL) CountGames() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_records`).Scan(&count)
	return count, err
}

// SaveSessionStats 保存连接统计
func (p *PostgreSQL) SaveSessionStats(stats *models.SessionStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 使用 UPSERT 操作 (PostgreSQL 9.5+)
	query := `
        INSERT INTO session_stats (session_id, remote_addr, games_served, connected_at, closed_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (session_id)
        DO UPDATE SET games_served = $3, closed_at = $5
    `

	_, err := p.db.ExecContext(ctx, query,
		stats.SessionID, stats.RemoteAddr, stats.GamesServed, stats.ConnectedAt, stats.ClosedAt)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
