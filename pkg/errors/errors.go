package errors

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam    = 400
	CodeUnauthorized    = 401
	CodePaymentRequired = 402
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeTooManyRequests = 429
	CodeServerError     = 500
)

// ========== 订阅网关错误码 ==========

// 订阅网关拒绝请求时返回的业务错误码
const (
	GateCodeAuthRequired        = "AUTH_REQUIRED"
	GateCodeNoSubscription      = "NO_SUBSCRIPTION"
	GateCodeFeatureNotAvailable = "FEATURE_NOT_AVAILABLE"
	GateCodeLimitExceeded       = "LIMIT_EXCEEDED"
)
