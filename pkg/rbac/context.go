package rbac

// SecurityContext 请求级安全上下文。每个请求从持久化的用户/会话状态
// 重建一次，随请求结束销毁，不落库
type SecurityContext struct {
	UserID         uint         `json:"user_id"`
	Role           Role         `json:"role"`
	TenantID       uint         `json:"tenant_id"`
	BranchID       uint         `json:"branch_id"`
	IsImpersonated bool         `json:"is_impersonated"`
	ImpersonatedBy *uint        `json:"impersonated_by,omitempty"`
	Permissions    []Permission `json:"permissions"`
}

// HasPermission 检查上下文是否持有指定权限。
// 持有全量权限（见 IsSuperPermission）时对所有权限返回 true
func (sc *SecurityContext) HasPermission(p Permission) bool {
	for _, owned := range sc.Permissions {
		if owned == p || IsSuperPermission(owned) {
			return true
		}
	}
	return false
}
