package geo

import (
	"context"
	"errors"
	"time"
)

// DefaultLocateTimeout 获取定位的默认超时
const DefaultLocateTimeout = 10 * time.Second

// 定位来源错误分类
var (
	ErrPermissionDenied    = errors.New("定位权限被拒绝，请在设备设置中开启定位权限")
	ErrPositionUnavailable = errors.New("当前无法获取定位信息，请检查设备设置")
	ErrLocateTimeout       = errors.New("获取定位超时，请重试")
)

// Fix 设备单次定位结果
type Fix struct {
	Point
	AccuracyMeters float64   `json:"accuracy_meters"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate 校验坐标与精度
func (f Fix) Validate() error {
	if err := f.Point.Validate(); err != nil {
		return err
	}
	return ValidateAccuracy(f.AccuracyMeters)
}

// Source 定位来源（通常在客户端设备上，服务端只消费结果）
type Source interface {
	CurrentFix(ctx context.Context) (Fix, error)
}

// SourceFunc 函数适配为 Source
type SourceFunc func(ctx context.Context) (Fix, error)

// CurrentFix 实现 Source
func (f SourceFunc) CurrentFix(ctx context.Context) (Fix, error) { return f(ctx) }

// Locate 在超时约束下获取一次定位；timeout <= 0 时使用默认值。
// 超时或取消统一映射为 ErrLocateTimeout，其余非分类错误映射为 ErrPositionUnavailable。
func Locate(ctx context.Context, src Source, timeout time.Duration) (Fix, error) {
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		fix Fix
		err error
	}
	ch := make(chan result, 1)
	go func() {
		fix, err := src.CurrentFix(ctx)
		ch <- result{fix: fix, err: err}
	}()

	select {
	case <-ctx.Done():
		return Fix{}, ErrLocateTimeout
	case r := <-ch:
		if r.err != nil {
			return Fix{}, classify(r.err)
		}
		if err := r.fix.Validate(); err != nil {
			return Fix{}, err
		}
		return r.fix, nil
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrPositionUnavailable), errors.Is(err, ErrLocateTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrLocateTimeout
	default:
		return ErrPositionUnavailable
	}
}

// 客户端上报的定位失败代码
const (
	FixErrorPermissionDenied = "permission_denied"
	FixErrorUnavailable      = "unavailable"
	FixErrorTimeout          = "timeout"
)

// ParseFixError 将客户端上报的失败代码映射为分类错误；未知代码视为定位不可用
func ParseFixError(code string) error {
	switch code {
	case "":
		return nil
	case FixErrorPermissionDenied:
		return ErrPermissionDenied
	case FixErrorTimeout:
		return ErrLocateTimeout
	default:
		return ErrPositionUnavailable
	}
}
