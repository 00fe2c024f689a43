package model

import "time"

// CheckinMethod 签到方式
type CheckinMethod string

const (
	MethodGPS    CheckinMethod = "gps"
	MethodManual CheckinMethod = "manual"
)

// AttendanceRecord 签到记录表 — 对应 attendance_records
// (incident_id, user_id) 唯一，写入后不可修改或删除
type AttendanceRecord struct {
	RecordID       string        `gorm:"type:uuid;primaryKey"                         json:"record_id"`
	IncidentID     string        `gorm:"type:uuid;not null"                             json:"incident_id"`
	UserID         string        `gorm:"type:varchar(128);not null"                     json:"user_id"`
	StudentID      string        `gorm:"type:varchar(20);not null"                      json:"student_id"`
	AccountedAt    time.Time     `gorm:"not null"                                       json:"accounted_at"`
	Method         CheckinMethod `gorm:"type:varchar(10);not null"                      json:"method"`
	Latitude       *float64      `                                                      json:"latitude,omitempty"`
	Longitude      *float64      `                                                      json:"longitude,omitempty"`
	AccuracyMeters *float64      `                                                      json:"accuracy_meters,omitempty"`
	FixAt          *time.Time    `                                                      json:"fix_at,omitempty"`
	AccountedBy    *string       `gorm:"type:varchar(128)"                              json:"accounted_by,omitempty"`
	ManualReason   *string       `gorm:"type:text"                                      json:"manual_reason,omitempty"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }
