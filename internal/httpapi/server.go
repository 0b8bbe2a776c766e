// Package httpapi is the HTTP surface described by section 6 of the
// system's external interfaces: analysis submission/polling, history,
// agent chat, vision extraction, and admin auth, all under /api/v1,
// wired with gin-gonic/gin the way the pack's handler package does.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dsa-core/dsa-core/internal/agent"
	"github.com/dsa-core/dsa-core/internal/auth"
	"github.com/dsa-core/dsa-core/internal/eventbus"
	"github.com/dsa-core/dsa-core/internal/llm"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/newsintel"
	"github.com/dsa-core/dsa-core/internal/pipeline"
	"github.com/dsa-core/dsa-core/internal/store"
	"github.com/dsa-core/dsa-core/internal/taskqueue"
)

// Deps wires every collaborator the API surface calls into.
type Deps struct {
	Pipeline    *pipeline.Pipeline
	Queue       *taskqueue.Queue
	Bus         *eventbus.Bus
	Store       *store.Store
	AuthMgr     *auth.Manager
	AuthEnabled bool
	Tools       *agent.Registry
	Strategies  map[string]*agent.Strategy
	AgentModel  string
	News        *newsintel.Service
	Log         *logging.Logger
}

// agentGenerator adapts *llm.Router to agent.Generator without pulling
// in the whole Router type at the handler layer.
type agentGenerator interface {
	Generate(ctx context.Context, req llm.Request) (llm.Response, error)
}

// New builds the configured gin.Engine.
func New(deps *Deps, generator agentGenerator, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Log))

	corsCfg := cors.DefaultConfig()
	if len(corsOrigins) > 0 {
		corsCfg.AllowOrigins = corsOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowCredentials = len(corsOrigins) > 0
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})

	h := &handlers{deps: deps, generator: generator}

	v1 := r.Group("/api/v1")
	v1.GET("/auth/status", h.authStatus)
	v1.POST("/auth/login", h.authLogin)
	v1.POST("/auth/logout", h.authLogout)
	v1.POST("/auth/change-password", h.authChangePassword)

	protected := v1.Group("")
	protected.Use(authGate(deps))
	{
		protected.POST("/analysis/analyze", h.analyze)
		protected.GET("/analysis/status/:task_id", h.taskStatus)
		protected.GET("/analysis/tasks", h.listTasks)
		protected.GET("/analysis/tasks/stream", h.streamTasks)

		protected.GET("/history", h.history)
		protected.GET("/history/:record_id", h.historyByID)
		protected.GET("/history/:record_id/news", h.historyNews)

		protected.POST("/agent/chat/stream", h.agentChatStream)
		protected.GET("/agent/strategies", h.listStrategies)
		protected.GET("/agent/chat/sessions", h.listSessions)
		protected.GET("/agent/chat/sessions/:session_id", h.getSession)
		protected.DELETE("/agent/chat/sessions/:session_id", h.deleteSession)

		protected.POST("/stocks/extract-from-image", h.extractFromImage)
	}

	return r
}

func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log != nil {
			log.Infof("http: %s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}

type handlers struct {
	deps      *Deps
	generator agentGenerator
}
