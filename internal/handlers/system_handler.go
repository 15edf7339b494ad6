package handlers

import (
	"time"

	"pharmos/pkg/queue"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SystemHandler 系统状态处理器
type SystemHandler struct {
	db    *gorm.DB
	queue *queue.RedisQueue
	start time.Time
}

func NewSystemHandler(db *gorm.DB, q *queue.RedisQueue) *SystemHandler {
	return &SystemHandler{db: db, queue: q, start: time.Now()}
}

// Health 健康检查
func (h *SystemHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "error"
	}

	redisStatus := "ok"
	if h.queue == nil || h.queue.Ping() != nil {
		redisStatus = "error"
	}

	response.Success(c, gin.H{
		"status":   "running",
		"database": dbStatus,
		"redis":    redisStatus,
		"uptime":   time.Since(h.start).String(),
	})
}

// Ping 连通性检查
func (h *SystemHandler) Ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
