package model

import "time"

// HelpStatus 求助状态
type HelpStatus string

const (
	HelpOpen     HelpStatus = "open"
	HelpResolved HelpStatus = "resolved"
)

// HelpRequest 求助表 — 对应 help_requests，主键 (incident_id, user_id)
// Version 每次写入递增，订阅方据此丢弃乱序到达的旧版本
type HelpRequest struct {
	IncidentID string     `gorm:"type:uuid;primaryKey"         json:"incident_id"`
	UserID     string     `gorm:"type:varchar(128);primaryKey" json:"user_id"`
	StudentID  string     `gorm:"type:varchar(20);not null"    json:"student_id"`
	RoomLabel  *string    `gorm:"type:varchar(20)"             json:"room_label,omitempty"`
	Status     HelpStatus `gorm:"type:varchar(10);not null"    json:"status"`
	CreatedAt  time.Time  `gorm:"not null"                     json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null"                     json:"updated_at"`
	Version    int        `gorm:"not null;default:1"           json:"version"`
}

// TableName 指定表名
func (HelpRequest) TableName() string { return "help_requests" }
