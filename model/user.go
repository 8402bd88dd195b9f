package model

import "time"

// Role values for User.Role.
const (
	RoleAdmin  = "admin"
	RoleDriver = "driver"
)

// User represents an operator or driver account.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	Email        string     `gorm:"size:128" json:"email"`
	FullName     string     `gorm:"size:64" json:"full_name"`
	Role         string     `gorm:"size:16;default:driver" json:"role"` // admin | driver
	Status       int        `gorm:"default:1" json:"status"`            // 0=disabled 1=active
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"last_login_ip"`
}
