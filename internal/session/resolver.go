package session

import (
	"context"
	"fmt"
	"regexp"

	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/store/gormstore"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Store 是解析器消费的会话持久化接口（由 gormstore.Store 实现）。
type Store interface {
	GetSession(ctx context.Context, token string) (*gormstore.Session, error)
	CreateSession(ctx context.Context) (*gormstore.Session, error)
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error)
	UpdateEntities(ctx context.Context, sessionID string, entities types.Entities) error
}

// Resolution 是一次会话解析的结果。
type Resolution struct {
	SessionID       string
	IsAuthenticated bool
	Created         bool
	Entities        types.Entities
	History         []types.Turn
}

// Resolver 负责把请求 token 还原成会话身份、历史与实体。
type Resolver struct {
	store        Store
	historyLimit int
}

func NewResolver(store Store, historyLimit int) *Resolver {
	if historyLimit < 2 {
		historyLimit = 10
	}
	return &Resolver{store: store, historyLimit: historyLimit}
}

// 指代性表达：问题里用代词指前文股票时触发实体回填。
var referentialPattern = regexp.MustCompile(`(?i)\b(that stock|this stock|the stock|it)\b|그\s*종목|이\s*종목|해당\s*종목|그거|그것`)

// 韩国上市代码为 6 位数字。
var stockCodePattern = regexp.MustCompile(`\b\d{6}\b`)

// Resolve 定位会话。token 无效/过期时创建匿名会话（新身份返回给调用方），
// 并在问题使用指代语且缺少显式实体时，从最近含股票代码的历史轮回填。
func (r *Resolver) Resolve(ctx context.Context, token, query string, extracted types.Entities) (Resolution, error) {
	sess, err := r.store.GetSession(ctx, token)
	if err != nil {
		logger.Warnf("[session] lookup failed, creating anonymous session: %v", err)
	}
	created := false
	if sess == nil {
		sess, err = r.store.CreateSession(ctx)
		if err != nil {
			return Resolution{}, fmt.Errorf("creating session: %w", err)
		}
		created = true
	}
	res := Resolution{
		SessionID:       sess.ID,
		IsAuthenticated: sess.IsAuthenticated,
		Created:         created,
		Entities:        extracted.Merge(sess.Entities),
	}
	history, err := r.store.RecentTurns(ctx, sess.ID, r.historyLimit)
	if err != nil {
		logger.Warnf("[session] loading turns failed for %s: %v", sess.ID, err)
	} else {
		res.History = history
	}

	if res.Entities.StockID == "" && isReferential(query) {
		if id := lastStockID(res.History); id != "" {
			res.Entities.StockID = id
			logger.Debugf("[session] backfilled stock id %s from history for %s", id, sess.ID)
		}
	}
	if res.Entities.HasStock() {
		if err := r.store.UpdateEntities(ctx, sess.ID, res.Entities); err != nil {
			logger.Warnf("[session] persisting entities failed for %s: %v", sess.ID, err)
		}
	}
	return res, nil
}

func isReferential(query string) bool {
	return referentialPattern.MatchString(query)
}

// lastStockID 从最近的历史轮里找股票代码（倒序扫描，尽力而为）。
func lastStockID(history []types.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if m := stockCodePattern.FindString(history[i].Content); m != "" {
			return m
		}
	}
	return ""
}
