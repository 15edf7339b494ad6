package handlers

import (
	"pharmos/internal/middleware"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志处理器（合规查询，只读）
type AuditHandler struct {
	audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// GetAll 分页查询审计日志
func (h *AuditHandler) GetAll(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	action := c.Query("action")
	from := parseTimeQuery(c, "from")
	to := parseTimeQuery(c, "to")

	logs, total, err := h.audit.GetWithPage(sc, action, from, to, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, logs, pageInfo)
}
