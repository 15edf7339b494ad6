package services

import (
	"errors"
	"net/http"
	"strings"

	"pharmos/internal/models"
	apperrors "pharmos/pkg/errors"
	"pharmos/pkg/logger"
	"pharmos/pkg/rbac"
)

// Decision 订阅网关的放行决策。AllowedDueToError 单独成档，
// 用于标记"内部错误时选择放行"这一有意的可用性取舍，便于测试断言
type Decision int

const (
	DecisionAllowed Decision = iota
	DecisionAllowedGrace
	DecisionAllowedDueToError
	DecisionDenied
)

// GateResult 网关检查结果
type GateResult struct {
	Decision     Decision
	StatusCode   int
	ErrorCode    string
	Message      string
	RequiredPlan string
	LimitType    string
	CurrentUsage int64
	Limit        int
	Subscription *models.Subscription
}

// Allowed 请求是否放行
func (r *GateResult) Allowed() bool {
	return r.Decision != DecisionDenied
}

// gateSkipPrefixes 不参与订阅检查的路径前缀。
// 认证、计费（租户必须能付费续订）、健康检查和静态资源永不拦截
var gateSkipPrefixes = []string{
	"/api/v1/auth",
	"/api/auth",
	"/api/v1/billing",
	"/api/billing",
	"/api/v1/health",
	"/api/v1/ping",
	"/health",
	"/static",
	"/ws",
}

// featureNames 路径功能段到套餐功能名的映射
var featureNames = map[string]string{
	"users":         "User Management",
	"branches":      "Multi-Branch Management",
	"products":      "Inventory Management",
	"inventory":     "Inventory Management",
	"sales":         "Sales & POS",
	"prescriptions": "Prescription Management",
	"patients":      "Patient Records",
	"reports":       "Advanced Reports",
	"notifications": "Notifications",
	"audit-logs":    "Compliance Audit",
}

// featureMinPlans 解锁各功能所需的最低套餐档位名
var featureMinPlans = map[string]string{
	"User Management":         "Basic",
	"Inventory Management":    "Basic",
	"Sales & POS":             "Basic",
	"Patient Records":         "Basic",
	"Notifications":           "Basic",
	"Prescription Management": "Professional",
	"Multi-Branch Management": "Professional",
	"Advanced Reports":        "Professional",
	"Compliance Audit":        "Enterprise",
}

// featureLimits 功能段对应的用量限额类型
var featureLimits = map[string]string{
	"users":     "users",
	"products":  "products",
	"inventory": "products",
	"sales":     "transactions",
	"branches":  "branches",
}

// GateService 订阅网关求值器：套餐功能检查 + 用量限额检查。
// 除明确的拒绝分支外，任何内部失败都放行并记日志（可用性优先）
type GateService struct {
	subscriptions *SubscriptionService
	usage         *UsageService
}

func NewGateService(subscriptions *SubscriptionService, usage *UsageService) *GateService {
	return &GateService{subscriptions: subscriptions, usage: usage}
}

// ShouldSkip 路径是否在免检名单内
func (g *GateService) ShouldSkip(path string) bool {
	for _, prefix := range gateSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// FeatureFromPath 提取请求路径的功能段：/api/后的第一个路径段（跳过版本段）。
// 路径不符合约定时返回空串，调用方按不设限处理
func FeatureFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/")
	if trimmed == path {
		return ""
	}
	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ""
	}
	// 跳过版本段，如 /api/v1/users
	if len(segments[0]) >= 2 && segments[0][0] == 'v' && segments[0][1] >= '0' && segments[0][1] <= '9' {
		if len(segments) < 2 {
			return ""
		}
		return segments[1]
	}
	return segments[0]
}

// CheckAccess 对一次请求执行订阅检查
func (g *GateService) CheckAccess(path string, sc *rbac.SecurityContext) *GateResult {
	log := logger.GetLogger()

	// 1. 免检路径直接放行
	if g.ShouldSkip(path) {
		return &GateResult{Decision: DecisionAllowed}
	}

	// 2. 未认证
	if sc == nil {
		return &GateResult{
			Decision:   DecisionDenied,
			StatusCode: http.StatusUnauthorized,
			ErrorCode:  apperrors.GateCodeAuthRequired,
			Message:    "请先登录",
		}
	}

	// 全局角色不属于任何租户，不做订阅检查
	if sc.Role.IsGlobal() {
		return &GateResult{Decision: DecisionAllowed}
	}

	// 3. 解析租户的生效订阅
	subscription, err := g.subscriptions.GetActive(sc.TenantID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			return &GateResult{
				Decision:   DecisionDenied,
				StatusCode: http.StatusPaymentRequired,
				ErrorCode:  apperrors.GateCodeNoSubscription,
				Message:    "租户没有生效的订阅，请先开通套餐",
			}
		}
		// 查询失败放行（可用性优先）
		log.Errorf("订阅查询失败，放行请求: tenant=%d err=%v", sc.TenantID, err)
		return &GateResult{Decision: DecisionAllowedDueToError}
	}

	// 4. 功能检查
	feature := FeatureFromPath(path)
	if feature == "" {
		// 路径不符合 /api/{feature}/... 约定，不设限
		return &GateResult{Decision: DecisionAllowed, Subscription: subscription}
	}

	featureName, gated := featureNames[feature]
	if gated {
		features, err := subscription.Plan.FeatureList()
		if err != nil {
			// 套餐功能配置损坏时放行（可用性优先）
			log.Errorf("套餐功能列表解析失败，放行请求: plan=%d err=%v", subscription.PlanID, err)
			return &GateResult{Decision: DecisionAllowedDueToError, Subscription: subscription}
		}
		if !containsFeature(features, featureName) {
			return &GateResult{
				Decision:     DecisionDenied,
				StatusCode:   http.StatusForbidden,
				ErrorCode:    apperrors.GateCodeFeatureNotAvailable,
				Message:      "当前套餐不包含功能: " + featureName,
				RequiredPlan: featureMinPlans[featureName],
				Subscription: subscription,
			}
		}
	}

	// 5-6. 用量限额检查
	if limitType, ok := featureLimits[feature]; ok {
		metrics, err := g.usage.GetUsage(sc.TenantID)
		if err != nil {
			log.Errorf("用量统计失败，放行请求: tenant=%d err=%v", sc.TenantID, err)
			return &GateResult{Decision: DecisionAllowedDueToError, Subscription: subscription}
		}

		current, limit := pickLimit(limitType, metrics, subscription.Plan)
		// 限额为-1时不限制
		if limit != models.UnlimitedLimit && current >= int64(limit) {
			return &GateResult{
				Decision:     DecisionDenied,
				StatusCode:   http.StatusTooManyRequests,
				ErrorCode:    apperrors.GateCodeLimitExceeded,
				Message:      "已达到套餐限额: " + limitType,
				LimitType:    limitType,
				CurrentUsage: current,
				Limit:        limit,
				Subscription: subscription,
			}
		}
	}

	// 7. 放行；宽限期记录告警
	if subscription.Status == models.SubscriptionStatusGracePeriod {
		log.Warnf("租户订阅处于宽限期: tenant=%d plan=%s end=%s",
			sc.TenantID, subscription.Plan.Name, subscription.EndDate.Format("2006-01-02"))
		return &GateResult{Decision: DecisionAllowedGrace, Subscription: subscription}
	}

	return &GateResult{Decision: DecisionAllowed, Subscription: subscription}
}

// containsFeature 功能列表是否包含指定功能或通配项
func containsFeature(features []string, name string) bool {
	for _, f := range features {
		if f == name || f == models.FeatureAll {
			return true
		}
	}
	return false
}

// pickLimit 根据限额类型取出当前用量和套餐限额
func pickLimit(limitType string, metrics *UsageMetrics, plan *models.SubscriptionPlan) (int64, int) {
	switch limitType {
	case "users":
		return metrics.Users.Current, plan.MaxUsers
	case "products":
		return metrics.Products.Current, plan.MaxProducts
	case "transactions":
		return metrics.Transactions.Current, plan.MaxTransactions
	case "branches":
		return metrics.Branches.Current, plan.MaxBranches
	}
	return 0, models.UnlimitedLimit
}
