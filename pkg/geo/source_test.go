package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate_Success(t *testing.T) {
	want := Fix{Point: utown, AccuracyMeters: 8, Timestamp: time.Now()}
	src := SourceFunc(func(context.Context) (Fix, error) { return want, nil })

	got, err := Locate(context.Background(), src, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLocate_TimeoutCancelsSource(t *testing.T) {
	cancelled := make(chan struct{})
	src := SourceFunc(func(ctx context.Context) (Fix, error) {
		<-ctx.Done()
		close(cancelled)
		return Fix{}, ctx.Err()
	})

	_, err := Locate(context.Background(), src, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocateTimeout)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("定位来源未收到取消信号")
	}
}

func TestLocate_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"权限拒绝", ErrPermissionDenied, ErrPermissionDenied},
		{"不可用", ErrPositionUnavailable, ErrPositionUnavailable},
		{"未知错误", errors.New("gps chip on fire"), ErrPositionUnavailable},
		{"上下文取消", context.Canceled, ErrLocateTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := SourceFunc(func(context.Context) (Fix, error) { return Fix{}, tc.err })
			_, err := Locate(context.Background(), src, time.Second)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLocate_RejectsInvalidFix(t *testing.T) {
	src := SourceFunc(func(context.Context) (Fix, error) {
		return Fix{Point: Point{Latitude: 120, Longitude: 0}, AccuracyMeters: 5}, nil
	})
	_, err := Locate(context.Background(), src, time.Second)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestParseFixError(t *testing.T) {
	assert.NoError(t, ParseFixError(""))
	assert.ErrorIs(t, ParseFixError(FixErrorPermissionDenied), ErrPermissionDenied)
	assert.ErrorIs(t, ParseFixError(FixErrorUnavailable), ErrPositionUnavailable)
	assert.ErrorIs(t, ParseFixError(FixErrorTimeout), ErrLocateTimeout)
	assert.ErrorIs(t, ParseFixError("weird"), ErrPositionUnavailable)
}
