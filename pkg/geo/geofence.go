package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters 地球平均半径（米），半正矢公式使用
const EarthRadiusMeters = 6371000.0

// GPS 精度分级阈值（米，含边界）
const (
	HighConfidenceMaxAccuracy   = 25.0
	MediumConfidenceMaxAccuracy = 50.0
)

var (
	ErrInvalidCoordinate = errors.New("坐标无效")
	ErrInvalidRadius     = errors.New("半径必须大于 0")
	ErrInvalidAccuracy   = errors.New("定位精度无效")
)

// Confidence GPS 定位可信度
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Point 经纬度坐标（WGS84，单位：度）
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate 校验坐标取值范围
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return ErrInvalidCoordinate
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: 纬度 %v 超出 [-90, 90]", ErrInvalidCoordinate, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: 经度 %v 超出 [-180, 180]", ErrInvalidCoordinate, p.Longitude)
	}
	return nil
}

// Fence 以集合点为圆心的圆形围栏
type Fence struct {
	Center       Point
	RadiusMeters float64
}

// Validate 校验围栏圆心与半径
func (f Fence) Validate() error {
	if err := f.Center.Validate(); err != nil {
		return err
	}
	if math.IsNaN(f.RadiusMeters) || f.RadiusMeters <= 0 {
		return ErrInvalidRadius
	}
	return nil
}

// DistanceMeters 使用半正矢公式计算两点间大圆距离（米）
func DistanceMeters(a, b Point) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// WithinRadius 判断坐标是否落在围栏内（边界算在内）
func WithinRadius(p Point, f Fence) bool {
	return DistanceMeters(p, f.Center) <= f.RadiusMeters
}

// ConfidenceOf 根据设备上报精度给出可信度分级
func ConfidenceOf(accuracyMeters float64) Confidence {
	switch {
	case accuracyMeters <= HighConfidenceMaxAccuracy:
		return ConfidenceHigh
	case accuracyMeters <= MediumConfidenceMaxAccuracy:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ValidateAccuracy 精度必须为非负有限值
func ValidateAccuracy(accuracyMeters float64) error {
	if math.IsNaN(accuracyMeters) || math.IsInf(accuracyMeters, 0) || accuracyMeters < 0 {
		return ErrInvalidAccuracy
	}
	return nil
}

// FormatDistance 距离展示：1km 以下取整到米，以上保留一位小数的千米
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}
