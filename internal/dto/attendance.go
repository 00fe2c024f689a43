package dto

// ── 签到模块 DTO ──

// GpsCheckinRequest GPS 签到
// 客户端定位失败时只上报 fix_error（permission_denied / unavailable / timeout），不带坐标
type GpsCheckinRequest struct {
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	AccuracyMeters *float64 `json:"accuracy_meters"`
	FixTimestamp   *int64   `json:"fix_timestamp"` // 毫秒
	FixError       string   `json:"fix_error"      binding:"omitempty,oneof=permission_denied unavailable timeout"`
}

// ManualCheckinRequest 人工签到
type ManualCheckinRequest struct {
	UserID string `json:"user_id" binding:"required,max=128"`
	Reason string `json:"reason"  binding:"max=500"`
}

// StatusQuery 名单状态筛选
type StatusQuery struct {
	Status  string `form:"status"  binding:"omitempty,oneof=missing accounted_gps accounted_manual"`
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// AttendanceRecordResponse 签到记录
type AttendanceRecordResponse struct {
	ID             string   `json:"id"`
	IncidentID     string   `json:"incident_id"`
	UserID         string   `json:"user_id"`
	StudentID      string   `json:"student_id"`
	AccountedAt    string   `json:"accounted_at"`
	Method         string   `json:"method"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	AccuracyMeters *float64 `json:"accuracy_meters,omitempty"`
	FixAt          *string  `json:"fix_at,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	AccountedBy    *string  `json:"accounted_by,omitempty"`
	ManualReason   *string  `json:"manual_reason,omitempty"`
}

// CheckinResponse 签到结果；created=false 表示此前已签到，返回原记录
type CheckinResponse struct {
	Created bool                     `json:"created"`
	Record  AttendanceRecordResponse `json:"record"`
}

// ResidentStatusResponse 单个住户状态
type ResidentStatusResponse struct {
	UserID      string  `json:"user_id"`
	StudentID   string  `json:"student_id"`
	Email       string  `json:"email"`
	RoomLabel   *string `json:"room_label,omitempty"`
	Status      string  `json:"status"`
	Confidence  string  `json:"confidence,omitempty"`
	AccountedAt *string `json:"accounted_at,omitempty"`
	AccountedBy *string `json:"accounted_by,omitempty"`
	Reason      *string `json:"reason,omitempty"`
}

// StatusSummaryResponse 汇总
type StatusSummaryResponse struct {
	Total           int `json:"total"`
	AccountedGPS    int `json:"accounted_gps"`
	AccountedManual int `json:"accounted_manual"`
	Missing         int `json:"missing"`
}

// RosterStatusResponse 名单核对视图
type RosterStatusResponse struct {
	IncidentID string                   `json:"incident_id"`
	Summary    StatusSummaryResponse    `json:"summary"`
	Residents  []ResidentStatusResponse `json:"residents"`
}
