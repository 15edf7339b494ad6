package middleware

import (
	"time"

	"pharmos/internal/services"

	"github.com/gin-gonic/gin"
)

// 订阅信息响应头
const (
	HeaderSubscriptionPlan    = "X-Subscription-Plan"
	HeaderSubscriptionStatus  = "X-Subscription-Status"
	HeaderSubscriptionExpires = "X-Subscription-Expires"
)

// GateErrorBody 订阅网关拒绝时的响应体
type GateErrorBody struct {
	Error        bool   `json:"error"`
	ErrorCode    string `json:"errorCode"`
	Message      string `json:"message"`
	RequiredPlan string `json:"requiredPlan,omitempty"`
	LimitType    string `json:"limitType,omitempty"`
	CurrentUsage *int64 `json:"currentUsage,omitempty"`
	Limit        *int   `json:"limit,omitempty"`
	UpgradeURL   string `json:"upgradeUrl"`
	Timestamp    string `json:"timestamp"`
}

// SubscriptionMiddleware 订阅网关中间件，在网点隔离之后运行（更重，带DB和用量查询）
type SubscriptionMiddleware struct {
	gate       *services.GateService
	upgradeURL string
}

func NewSubscriptionMiddleware(gate *services.GateService, upgradeURL string) *SubscriptionMiddleware {
	return &SubscriptionMiddleware{gate: gate, upgradeURL: upgradeURL}
}

// Handler 订阅检查
func (m *SubscriptionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result := m.gate.CheckAccess(c.Request.URL.Path, GetSecurityContext(c))

		if !result.Allowed() {
			body := GateErrorBody{
				Error:        true,
				ErrorCode:    result.ErrorCode,
				Message:      result.Message,
				RequiredPlan: result.RequiredPlan,
				LimitType:    result.LimitType,
				UpgradeURL:   m.upgradeURL,
				Timestamp:    time.Now().Format(time.RFC3339),
			}
			if result.LimitType != "" {
				current := result.CurrentUsage
				limit := result.Limit
				body.CurrentUsage = &current
				body.Limit = &limit
			}
			c.JSON(result.StatusCode, body)
			c.Abort()
			return
		}

		// 放行时附带订阅信息响应头
		if result.Subscription != nil && result.Subscription.Plan != nil {
			c.Header(HeaderSubscriptionPlan, result.Subscription.Plan.Name)
			c.Header(HeaderSubscriptionStatus, result.Subscription.Status)
			c.Header(HeaderSubscriptionExpires, result.Subscription.EndDate.Format("2006-01-02"))
		}

		c.Next()
	}
}
