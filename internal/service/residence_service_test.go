package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/dto"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func newTestResidenceService(t *testing.T) (ResidenceService, *fixture) {
	f := newFixture(t)
	return NewResidenceService(f.repo, 100, zap.NewNop()), f
}

func TestResidenceService_CreateAndRename(t *testing.T) {
	svc, _ := newTestResidenceService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &dto.CreateResidenceRequest{Name: "   "}, uidOffice)
	assert.ErrorIs(t, err, ErrInvalidResidenceName)

	created, err := svc.Create(ctx, &dto.CreateResidenceRequest{Name: " Temasek Hall "}, uidOffice)
	require.NoError(t, err)
	assert.Equal(t, "Temasek Hall", created.Name)

	renamed, err := svc.Rename(ctx, created.ID, &dto.RenameResidenceRequest{Name: "Temasek"}, uidOffice)
	require.NoError(t, err)
	assert.Equal(t, "Temasek", renamed.Name)

	_, err = svc.Rename(ctx, "missing", &dto.RenameResidenceRequest{Name: "x"}, uidOffice)
	assert.ErrorIs(t, err, ErrResidenceNotFound)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestResidenceService_Checkpoint(t *testing.T) {
	svc, _ := newTestResidenceService(t)
	ctx := context.Background()

	_, err := svc.GetCheckpoint(ctx, resB)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	// 半径缺省取默认值
	cp, err := svc.UpsertCheckpoint(ctx, resB, &dto.UpsertCheckpointRequest{
		Latitude:  float64Ptr(1.3),
		Longitude: float64Ptr(103.78),
	}, uidOffice)
	require.NoError(t, err)
	assert.Equal(t, 100.0, cp.RadiusMeters)
	assert.Equal(t, 1, cp.Version)

	updated, err := svc.UpsertCheckpoint(ctx, resB, &dto.UpsertCheckpointRequest{
		Name:         "Car park",
		Latitude:     float64Ptr(1.3),
		Longitude:    float64Ptr(103.78),
		RadiusMeters: float64Ptr(60),
		Version:      intPtr(1),
	}, uidOffice)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, 60.0, updated.RadiusMeters)

	// 旧版本提交
	_, err = svc.UpsertCheckpoint(ctx, resB, &dto.UpsertCheckpointRequest{
		Latitude:  float64Ptr(1.3),
		Longitude: float64Ptr(103.78),
		Version:   intPtr(1),
	}, uidOffice)
	assert.ErrorIs(t, err, ErrCheckpointConflict)

	res, err := svc.Get(ctx, resB)
	require.NoError(t, err)
	require.NotNil(t, res.Checkpoint)
	assert.Equal(t, "Car park", res.Checkpoint.Name)

	require.NoError(t, svc.DeleteCheckpoint(ctx, resB))
	assert.ErrorIs(t, svc.DeleteCheckpoint(ctx, resB), ErrCheckpointNotFound)
}

func TestResidenceService_CheckpointValidation(t *testing.T) {
	svc, _ := newTestResidenceService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *dto.UpsertCheckpointRequest
	}{
		{"纬度越界", &dto.UpsertCheckpointRequest{Latitude: float64Ptr(91), Longitude: float64Ptr(0)}},
		{"经度越界", &dto.UpsertCheckpointRequest{Latitude: float64Ptr(0), Longitude: float64Ptr(-181)}},
		{"半径为 0", &dto.UpsertCheckpointRequest{Latitude: float64Ptr(0), Longitude: float64Ptr(0), RadiusMeters: float64Ptr(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpsertCheckpoint(ctx, resA, tt.req, uidOffice)
			assert.ErrorIs(t, err, ErrInvalidCheckpoint)
		})
	}

	_, err := svc.UpsertCheckpoint(ctx, "missing", &dto.UpsertCheckpointRequest{Latitude: float64Ptr(0), Longitude: float64Ptr(0)}, uidOffice)
	assert.ErrorIs(t, err, ErrResidenceNotFound)
}
