package dto

// AuditLogListRequest 审计日志查询
type AuditLogListRequest struct {
	PaginationRequest
}

// AuditLogResponse 审计日志
type AuditLogResponse struct {
	ID              int64   `json:"id"`
	IncidentID      string  `json:"incident_id"`
	ActorID         string  `json:"actor_id"`
	ActorStudentID  string  `json:"actor_student_id,omitempty"`
	Action          string  `json:"action"`
	TargetUserID    *string `json:"target_user_id,omitempty"`
	TargetStudentID *string `json:"target_student_id,omitempty"`
	Reason          *string `json:"reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
}
