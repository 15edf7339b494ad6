package handlers

import (
	"errors"
	"strconv"

	"pharmos/internal/middleware"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// GetAll 分页获取通知列表
func (h *NotificationHandler) GetAll(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	unreadOnly := c.Query("unread_only") == "true"

	notifications, total, err := h.notifications.GetWithPage(sc, unreadOnly, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, notifications, pageInfo)
}

// MarkRead 标记已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.notifications.MarkRead(sc, uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "通知不存在")
			return
		}
		response.ServerError(c, "操作失败")
		return
	}

	response.SuccessWithMessage(c, "已标记为已读", nil)
}
