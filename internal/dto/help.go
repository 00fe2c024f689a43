package dto

// ── 求助模块 DTO ──

// HelpRequestResponse 求助
type HelpRequestResponse struct {
	IncidentID string  `json:"incident_id"`
	UserID     string  `json:"user_id"`
	StudentID  string  `json:"student_id"`
	RoomLabel  *string `json:"room_label,omitempty"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	Version    int     `json:"version"`
}
