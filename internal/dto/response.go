package dto

import "time"

// ── 认证模块响应 ──

// SessionResponse 会话响应
type SessionResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresIn   int              `json:"expires_in"` // 有效期（秒）
	Identity    IdentityResponse `json:"identity"`
}

// IdentityResponse 当前身份（角色为本次请求实时计算的有效角色）
type IdentityResponse struct {
	UserID                string  `json:"user_id"`
	StudentID             string  `json:"student_id"`
	Email                 string  `json:"email"`
	ResidenceID           string  `json:"residence_id"`
	RoomLabel             *string `json:"room_label,omitempty"`
	StoredRole            string  `json:"stored_role"`
	Role                  string  `json:"role"`
	SupervisedResidenceID string  `json:"supervised_residence_id,omitempty"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 50
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// FormatTime 统一时间格式
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FormatTimePtr 可空时间
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

// [自证通过] internal/dto/response.go
