package dto

// ── 疏散事件 DTO ──

// IncidentResponse 疏散事件
type IncidentResponse struct {
	ID          string  `json:"id"`
	ResidenceID string  `json:"residence_id"`
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
	StartedBy   string  `json:"started_by"`
	EndedAt     *string `json:"ended_at,omitempty"`
	EndedBy     *string `json:"ended_by,omitempty"`
}
