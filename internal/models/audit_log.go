package models

import "time"

// AuditLog records an authenticated write request.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Resource   string    `gorm:"size:100;index" json:"resource"` // meetings, users, ...
	Action     string    `gorm:"size:50;index" json:"action"`    // create, update, delete
	Message    string    `gorm:"type:text" json:"message"`
	UserID     *uint     `gorm:"index" json:"user_id"`
	StatusCode int       `json:"status_code"`
	IP         string    `gorm:"size:50" json:"ip"`
	UserAgent  string    `gorm:"size:500" json:"user_agent"`
	Extra      string    `gorm:"type:text" json:"extra"` // JSON, sensitive fields masked
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
