package qahttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/itsreborn2/intellio-sub004/internal/answer"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
)

// Asker 由 engine 实现：一次提问进，一个可呈现响应出。
type Asker interface {
	Ask(ctx context.Context, token, query string) answer.Response
}

// Router 暴露问答接口。会话靠 cookie 维系，cookie 缺失时由引擎创建匿名会话。
type Router struct {
	engine     Asker
	cookieName string
	cookieTTL  int
}

func NewRouter(engine Asker, cookieName string, cookieMaxAgeSeconds int) *Router {
	if cookieName == "" {
		cookieName = "stockqa_session"
	}
	return &Router{engine: engine, cookieName: cookieName, cookieTTL: cookieMaxAgeSeconds}
}

// Register 将问答路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/ask", r.handleAsk)
}

func (r *Router) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warnf("[api] ask bind failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question 不能为空"})
		return
	}

	token, _ := c.Cookie(r.cookieName)
	resp := r.engine.Ask(c.Request.Context(), token, question)

	// 会话新建或轮换时把新 ID 写回 cookie。
	if resp.SessionID != "" && resp.SessionID != token {
		c.SetCookie(r.cookieName, resp.SessionID, r.cookieTTL, "/", "", false, true)
	}
	logger.Debugf("[api] ask ip=%s session=%s auth_required=%v sources=%d",
		c.ClientIP(), resp.SessionID, resp.AuthenticationRequired, len(resp.Sources))
	if resp.AuthenticationRequired {
		c.JSON(http.StatusUnauthorized, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
