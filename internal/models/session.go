package models

import "time"

// Session 登录会话记录，同时承载代理登录状态：
// 代理登录时以被代理用户身份新建会话，并记录发起人
type Session struct {
	BaseModel
	UserID         uint      `json:"user_id" gorm:"not null;index"`
	Token          string    `json:"token" gorm:"unique;not null;size:64;index"` // 会话标识（JWT中的session_id）
	IsImpersonated bool      `json:"is_impersonated" gorm:"default:false"`
	ImpersonatedBy *uint     `json:"impersonated_by"` // 代理登录发起人
	ClientIP       string    `json:"client_ip" gorm:"size:45"`
	ExpiresAt      time.Time `json:"expires_at" gorm:"not null;index"`
	IsActive       bool      `json:"is_active" gorm:"default:true;index"`
}

// TableName 表名
func (Session) TableName() string {
	return "sessions"
}

// IsExpired 会话是否已过期
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
