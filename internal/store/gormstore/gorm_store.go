package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Session 是对外暴露的会话记录。
type Session struct {
	ID              string
	Entities        types.Entities
	IsAuthenticated bool
	ExpiresAt       time.Time
}

// Expired 判断会话是否已过期。
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !s.ExpiresAt.After(now)
}

type sessionModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	Entities        datatypes.JSON
	IsAuthenticated bool
	CreatedAt       time.Time
	ExpiresAt       time.Time `gorm:"index"`
}

func (sessionModel) TableName() string { return "qa_sessions" }

type turnModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"index;size:64"`
	Role      string `gorm:"size:16"`
	Content   string
	CreatedAt time.Time `gorm:"index"`
}

func (turnModel) TableName() string { return "qa_turns" }

// Store 基于 Gorm + SQLite 持久化会话与对话轮次。
type Store struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewStore 打开（必要时创建）会话数据库。
func NewStore(path string, ttl time.Duration) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: session store path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&sessionModel{}, &turnModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：允许少量并行读，控制锁竞争
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db, ttl: ttl}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// GetSession 按 token 读取会话；不存在或已过期返回 nil。
func (s *Store) GetSession(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	var row sessionModel
	err := s.db.WithContext(ctx).First(&row, "id = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess := toSession(row)
	if sess.Expired(time.Now()) {
		return nil, nil
	}
	return sess, nil
}

// CreateSession 新建匿名会话。
func (s *Store) CreateSession(ctx context.Context) (*Session, error) {
	row := sessionModel{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return toSession(row), nil
}

// UpdateEntities 持久化会话内解析出的实体，便于后续轮次复用。
func (s *Store) UpdateEntities(ctx context.Context, sessionID string, entities types.Entities) error {
	raw, err := json.Marshal(entityRecord{
		StockID:   entities.StockID,
		StockName: entities.StockName,
		Sector:    entities.Sector,
		TimeRange: entities.TimeRange,
	})
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("id = ?", sessionID).
		Update("entities", datatypes.JSON(raw)).Error
}

// AppendExchange 把一问一答追加到对话日志并顺延会话有效期。
func (s *Store) AppendExchange(ctx context.Context, sessionID, query, answer string) error {
	now := time.Now()
	rows := []turnModel{
		{SessionID: sessionID, Role: "user", Content: query, CreatedAt: now},
		{SessionID: sessionID, Role: "assistant", Content: answer, CreatedAt: now.Add(time.Millisecond)},
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return tx.Model(&sessionModel{}).
			Where("id = ?", sessionID).
			Update("expires_at", now.Add(s.ttl)).Error
	})
}

// RecentTurns 返回最近的 limit 轮发言，按时间正序。
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []turnModel
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Turn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, types.Turn{
			Role:      rows[i].Role,
			Content:   rows[i].Content,
			Timestamp: rows[i].CreatedAt,
		})
	}
	return out, nil
}

// DeleteExpired 清理过期会话与对应的对话日志，返回删除的会话数。
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("expires_at <= ?", now).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id IN ?", ids).Delete(&turnModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&sessionModel{}).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

type entityRecord struct {
	StockID   string `json:"stock_id,omitempty"`
	StockName string `json:"stock_name,omitempty"`
	Sector    string `json:"sector,omitempty"`
	TimeRange string `json:"time_range,omitempty"`
}

func toSession(row sessionModel) *Session {
	sess := &Session{
		ID:              row.ID,
		IsAuthenticated: row.IsAuthenticated,
		ExpiresAt:       row.ExpiresAt,
	}
	if len(row.Entities) > 0 {
		var rec entityRecord
		if err := json.Unmarshal(row.Entities, &rec); err == nil {
			sess.Entities = types.Entities{
				StockID:   rec.StockID,
				StockName: rec.StockName,
				Sector:    rec.Sector,
				TimeRange: rec.TimeRange,
			}
		}
	}
	return sess
}
