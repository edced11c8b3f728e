package entity

import (
	"time"
)

// UserStatus 用户状态
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 角色
const (
	RoleAdmin   = "mrp_admin"
	RolePlanner = "mrp_planner"
	RoleViewer  = "mrp_viewer"
)

// User 用户
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Username     string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name         string     `json:"name" gorm:"size:100;not null"`
	Email        string     `json:"email" gorm:"size:100"`
	PasswordHash string     `json:"-" gorm:"size:128;not null"`
	Role         string     `json:"role" gorm:"size:20;not null;default:mrp_viewer"`
	Status       string     `json:"status" gorm:"size:20;not null;default:active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index"`
}

func (User) TableName() string {
	return "mrp_users"
}
