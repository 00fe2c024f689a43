package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/pkg/geo"
)

// ── 测试夹具 ──

const (
	resA = "res-a"
	resB = "res-b"

	uidResident  = "uid-resident"
	uidResident2 = "uid-resident-2"
	uidSuper     = "uid-super"
	uidSuperB    = "uid-super-b"
	uidOffice    = "uid-office"
)

var checkpointA = geo.Point{Latitude: 1.2966, Longitude: 103.7764}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store *mockStore
	repo  *repository.Repository
	hub   *realtime.MemoryHub
	clock *fakeClock

	roles      RoleService
	incidents  IncidentService
	attendance AttendanceService
	help       HelpService
	audit      AuditService
	export     ExportService
}

// newFixture 两个舍堂；A 有集合点，住户两名、监督员一名；B 有监督员一名；另有办公室账号
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMockStore()
	repo := store.repository()
	hub := realtime.NewMemoryHub(64)
	t.Cleanup(func() { _ = hub.Close() })
	clock := newFakeClock()
	logger := zap.NewNop()

	f := &fixture{store: store, repo: repo, hub: hub, clock: clock}
	f.roles = NewRoleService(repo, hub, logger)
	f.export = NewExportService(repo, logger)
	f.incidents = NewIncidentService(repo, hub, nil, f.export, nil, logger)
	f.attendance = NewAttendanceService(repo, f.roles, hub, nil, logger)
	f.help = NewHelpService(repo, hub, nil, logger)
	f.audit = NewAuditService(repo, logger)

	f.incidents.(*incidentService).now = clock.Now
	f.attendance.(*attendanceService).now = clock.Now
	f.help.(*helpService).now = clock.Now

	ctx := context.Background()
	require.NoError(t, repo.Residence.Create(ctx, &model.Residence{ResidenceID: resA, Name: "Sheares Hall"}))
	require.NoError(t, repo.Residence.Create(ctx, &model.Residence{ResidenceID: resB, Name: "Kent Ridge Hall"}))
	require.NoError(t, repo.Checkpoint.Create(ctx, &model.Checkpoint{
		ResidenceID:  resA,
		Latitude:     checkpointA.Latitude,
		Longitude:    checkpointA.Longitude,
		RadiusMeters: 100,
	}))

	room := "12-301"
	f.addUser(t, &model.User{UserID: uidResident, StudentID: "A0000001", Email: "r1@u.nus.edu", ResidenceID: resA, RoomLabel: &room})
	f.addUser(t, &model.User{UserID: uidResident2, StudentID: "A0000002", Email: "r2@u.nus.edu", ResidenceID: resA})
	f.addUser(t, &model.User{UserID: uidSuper, StudentID: "A0000009", Email: "s1@u.nus.edu", ResidenceID: resA})
	f.addUser(t, &model.User{UserID: uidSuperB, StudentID: "B0000009", Email: "s2@u.nus.edu", ResidenceID: resB})
	f.addUser(t, &model.User{UserID: uidOffice, StudentID: "E0000001", Email: "office@nus.edu.sg", ResidenceID: resA, Role: model.RoleOffice})

	_, _ = repo.AccessGrant.Create(ctx, &model.AccessGrant{StudentID: "A0000009", GrantedBy: uidOffice})
	_, _ = repo.AccessGrant.Create(ctx, &model.AccessGrant{StudentID: "B0000009", GrantedBy: uidOffice})
	return f
}

func (f *fixture) addUser(t *testing.T, u *model.User) {
	t.Helper()
	require.NoError(t, f.repo.User.Create(context.Background(), u))
}

// identity 与认证中间件相同，每次重新解析
func (f *fixture) identity(t *testing.T, userID string) *Identity {
	t.Helper()
	id, err := f.roles.ResolveByUserID(context.Background(), userID)
	require.NoError(t, err)
	return id
}

// startIncident 由 A 舍堂监督员开始事件
func (f *fixture) startIncident(t *testing.T) string {
	t.Helper()
	inc, err := f.incidents.Start(context.Background(), resA, f.identity(t, uidSuper))
	require.NoError(t, err)
	return inc.ID
}

// fixAt 在集合点正北 meters 米处的定位
func fixAt(meters, accuracy float64) geo.Fix {
	dLat := meters / geo.EarthRadiusMeters * 180 / math.Pi
	return geo.Fix{
		Point:          geo.Point{Latitude: checkpointA.Latitude + dLat, Longitude: checkpointA.Longitude},
		AccuracyMeters: accuracy,
		Timestamp:      time.Now(),
	}
}

// collect 读取订阅中已到达的事件
func collect(sub *realtime.Subscription, n int, timeout time.Duration) []realtime.Event {
	var events []realtime.Event
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

const timeoutShort = 200 * time.Millisecond
