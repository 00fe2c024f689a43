package dto

// ── 舍堂与集合点 DTO ──

// CreateResidenceRequest 创建舍堂
type CreateResidenceRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// RenameResidenceRequest 重命名舍堂
type RenameResidenceRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// UpsertCheckpointRequest 设置集合点
// 坐标使用指针区分 0 与未填；半径缺省取配置默认值；Version 用于并发编辑检测
type UpsertCheckpointRequest struct {
	Name         string   `json:"name"          binding:"omitempty,max=100"`
	Latitude     *float64 `json:"latitude"      binding:"required"`
	Longitude    *float64 `json:"longitude"     binding:"required"`
	RadiusMeters *float64 `json:"radius_meters"`
	Version      *int     `json:"version"`
}

// ResidenceResponse 舍堂
type ResidenceResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Checkpoint *CheckpointResponse `json:"checkpoint,omitempty"`
}

// CheckpointResponse 集合点
type CheckpointResponse struct {
	ID           string  `json:"id"`
	ResidenceID  string  `json:"residence_id"`
	Name         string  `json:"name,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
	Version      int     `json:"version"`
}
