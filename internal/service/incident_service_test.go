package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/realtime"
)

func TestIncidentService_StartAndEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.hub.Subscribe(ctx, realtime.ResidenceIncidentTopic(resA))
	require.NoError(t, err)
	defer sub.Close()

	super := f.identity(t, uidSuper)
	inc, err := f.incidents.Start(ctx, resA, super)
	require.NoError(t, err)
	assert.Equal(t, string(model.IncidentActive), inc.Status)
	assert.Equal(t, uidSuper, inc.StartedBy)

	active, err := f.incidents.GetActive(ctx, resA)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, inc.ID, active.ID)

	f.clock.Advance(10 * time.Minute)
	ended, err := f.incidents.End(ctx, inc.ID, super)
	require.NoError(t, err)
	assert.Equal(t, string(model.IncidentEnded), ended.Status)
	require.NotNil(t, ended.EndedAt)

	active, err = f.incidents.GetActive(ctx, resA)
	require.NoError(t, err)
	assert.Nil(t, active)

	// 结束后可再开始新事件
	_, err = f.incidents.Start(ctx, resA, super)
	require.NoError(t, err)

	history, err := f.incidents.ListByResidence(ctx, resA, super)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	events := collect(sub, 3, timeoutShort)
	require.Len(t, events, 3)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, 2, events[1].Version)

	logs, total, err := f.repo.AuditLog.ListByIncident(ctx, inc.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, model.AuditStartIncident, logs[0].Action)
	assert.Equal(t, model.AuditEndIncident, logs[1].Action)
}

func TestIncidentService_StartWhileActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.startIncident(t)
	_, err := f.incidents.Start(ctx, resA, f.identity(t, uidOffice))
	assert.ErrorIs(t, err, ErrIncidentAlreadyActive)

	// 其他舍堂不受影响
	_, err = f.incidents.Start(ctx, resB, f.identity(t, uidSuperB))
	assert.NoError(t, err)
}

func TestIncidentService_ConcurrentStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actors := []*Identity{f.identity(t, uidSuper), f.identity(t, uidOffice)}

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(actor *Identity) {
			defer wg.Done()
			_, err := f.incidents.Start(ctx, resA, actor)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrIncidentAlreadyActive):
				conflicts++
			default:
				t.Errorf("意外错误: %v", err)
			}
		}(actors[i%len(actors)])
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)
	count, _ := f.repo.Incident.CountActive(ctx)
	assert.EqualValues(t, 1, count)
}

func TestIncidentService_Scope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.incidents.Start(ctx, resA, f.identity(t, uidSuperB))
	assert.ErrorIs(t, err, ErrResidenceForbidden)

	_, err = f.incidents.Start(ctx, resA, f.identity(t, uidResident))
	assert.ErrorIs(t, err, ErrResidenceForbidden)

	// 办公室可管理任意舍堂；舍堂不存在时报 NotFound
	_, err = f.incidents.Start(ctx, "missing", f.identity(t, uidOffice))
	assert.ErrorIs(t, err, ErrResidenceNotFound)

	id := f.startIncident(t)
	_, err = f.incidents.End(ctx, id, f.identity(t, uidSuperB))
	assert.ErrorIs(t, err, ErrResidenceForbidden)
	_, err = f.incidents.End(ctx, id, f.identity(t, uidOffice))
	assert.NoError(t, err)
}

func TestIncidentService_EndTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startIncident(t)
	super := f.identity(t, uidSuper)

	_, err := f.incidents.End(ctx, id, super)
	require.NoError(t, err)
	_, err = f.incidents.End(ctx, id, super)
	assert.ErrorIs(t, err, ErrIncidentNotActive)

	_, err = f.incidents.End(ctx, "missing", super)
	assert.ErrorIs(t, err, ErrIncidentNotFound)
}

// ── 归档 ──

type recordingUploader struct {
	mu    sync.Mutex
	names []string
	bodies [][]byte
	done  chan struct{}
}

func (u *recordingUploader) Put(_ context.Context, name string, body []byte, _ string) (string, error) {
	u.mu.Lock()
	u.names = append(u.names, name)
	u.bodies = append(u.bodies, body)
	u.mu.Unlock()
	u.done <- struct{}{}
	return "archive/" + name, nil
}

func TestIncidentService_EndArchivesReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uploader := &recordingUploader{done: make(chan struct{}, 1)}
	svc := NewIncidentService(f.repo, f.hub, nil, f.export, uploader, zap.NewNop())

	super := f.identity(t, uidSuper)
	inc, err := svc.Start(ctx, resA, super)
	require.NoError(t, err)
	_, err = svc.End(ctx, inc.ID, super)
	require.NoError(t, err)

	select {
	case <-uploader.done:
	case <-time.After(2 * time.Second):
		t.Fatal("归档未执行")
	}

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	require.Len(t, uploader.names, 1)
	assert.Equal(t, resA+"/"+inc.ID+".xlsx", uploader.names[0])

	wb, err := excelize.OpenReader(bytes.NewReader(uploader.bodies[0]))
	require.NoError(t, err)
	defer wb.Close()
	assert.Contains(t, wb.GetSheetList(), "名单核对")
}
