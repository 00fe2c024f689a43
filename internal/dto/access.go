package dto

// ── 授权模块 DTO ──

// GrantAccessRequest 授予监督员权限
type GrantAccessRequest struct {
	StudentID string `json:"student_id" binding:"required,max=20"`
}

// AccessGrantResponse 授权记录
type AccessGrantResponse struct {
	StudentID string `json:"student_id"`
	GrantedBy string `json:"granted_by"`
	CreatedAt string `json:"created_at"`
}

// AssignSupervisorRequest 指派监督员负责舍堂
type AssignSupervisorRequest struct {
	ResidenceID string `json:"residence_id" binding:"required,uuid"`
}

// SupervisorAssignmentResponse 指派记录
type SupervisorAssignmentResponse struct {
	StudentID   string `json:"student_id"`
	ResidenceID string `json:"residence_id"`
}
