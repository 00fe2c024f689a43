//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/pkg/database"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=fire_evac password=fire_evac_password dbname=fire_evac_test sslmode=disable TimeZone=Asia/Singapore"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "执行迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// setupResidence 创建舍堂与若干住户，返回清理函数
func setupResidence(t *testing.T, residents int) (*model.Residence, []model.User, func()) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewRepository(testDB)
	suffix := time.Now().UnixNano()

	res := &model.Residence{Name: fmt.Sprintf("测试舍堂-%d", suffix)}
	if err := repo.Residence.Create(ctx, res); err != nil {
		t.Fatalf("创建舍堂失败: %v", err)
	}

	users := make([]model.User, 0, residents)
	for i := 0; i < residents; i++ {
		u := model.User{
			UserID:      fmt.Sprintf("uid-%d-%d", suffix, i),
			StudentID:   fmt.Sprintf("S%d%02d", suffix%1e8, i),
			Email:       fmt.Sprintf("r%d-%d@u.nus.edu", suffix, i),
			ResidenceID: res.ResidenceID,
			Role:        model.RoleResident,
		}
		if err := repo.User.Create(ctx, &u); err != nil {
			t.Fatalf("创建住户失败: %v", err)
		}
		users = append(users, u)
	}

	cleanup := func() {
		sub := testDB.Model(&model.Incident{}).Select("incident_id").Where("residence_id = ?", res.ResidenceID)
		testDB.Where("incident_id IN (?)", sub).Delete(&model.AuditLog{})
		testDB.Where("incident_id IN (?)", sub).Delete(&model.HelpRequest{})
		testDB.Where("incident_id IN (?)", sub).Delete(&model.AttendanceRecord{})
		testDB.Where("residence_id = ?", res.ResidenceID).Delete(&model.Incident{})
		testDB.Where("residence_id = ?", res.ResidenceID).Delete(&model.User{})
		testDB.Where("residence_id = ?", res.ResidenceID).Delete(&model.Checkpoint{})
		testDB.Where("residence_id = ?", res.ResidenceID).Delete(&model.Residence{})
	}
	return res, users, cleanup
}

func newActiveIncident(residenceID string) *model.Incident {
	return &model.Incident{
		ResidenceID: residenceID,
		Status:      model.IncidentActive,
		StartedAt:   time.Now(),
		StartedBy:   "uid-ra",
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 每个舍堂至多一个进行中事件
// ═══════════════════════════════════════════════════════════

func TestIncident_PartialUniqueIndex(t *testing.T) {
	res, _, cleanup := setupResidence(t, 0)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	first := newActiveIncident(res.ResidenceID)
	if err := repo.Incident.Create(ctx, first); err != nil {
		t.Fatalf("创建首个事件失败: %v", err)
	}

	err := repo.Incident.Create(ctx, newActiveIncident(res.ResidenceID))
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("第二个 active 事件应被部分唯一索引拒绝，得到: %v", err)
	}

	if _, err := repo.Incident.End(ctx, first.IncidentID, "uid-ra", time.Now()); err != nil {
		t.Fatalf("结束事件失败: %v", err)
	}
	if err := repo.Incident.Create(ctx, newActiveIncident(res.ResidenceID)); err != nil {
		t.Fatalf("结束后应可再次开始: %v", err)
	}

	if _, err := repo.Incident.End(ctx, first.IncidentID, "uid-ra", time.Now()); !errors.Is(err, repository.ErrIncidentNotActive) {
		t.Errorf("重复结束应返回 ErrIncidentNotActive，得到: %v", err)
	}
}

func TestIncident_ConcurrentStartSerialisedByRowLock(t *testing.T) {
	res, _, cleanup := setupResidence(t, 0)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Transaction(ctx, func(tx *repository.Repository) error {
				if _, err := tx.Residence.GetByIDForUpdate(ctx, res.ResidenceID); err != nil {
					return err
				}
				if _, err := tx.Incident.GetActiveByResidence(ctx, res.ResidenceID); err == nil {
					return repository.ErrDuplicate
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				return tx.Incident.Create(ctx, newActiveIncident(res.ResidenceID))
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("并发开始应只成功一次，实际 %d", created)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 每人每事件至多一条签到记录
// ═══════════════════════════════════════════════════════════

func TestAttendance_ConcurrentCreateIfAbsent(t *testing.T) {
	res, users, cleanup := setupResidence(t, 1)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	inc := newActiveIncident(res.ResidenceID)
	if err := repo.Incident.Create(ctx, inc); err != nil {
		t.Fatalf("创建事件失败: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	recordIDs := map[string]bool{}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			method := model.MethodGPS
			if i%2 == 1 {
				method = model.MethodManual
			}
			rec, created, err := repo.Attendance.CreateIfAbsent(ctx, &model.AttendanceRecord{
				IncidentID:  inc.IncidentID,
				UserID:      users[0].UserID,
				StudentID:   users[0].StudentID,
				AccountedAt: time.Now(),
				Method:      method,
			})
			if err != nil {
				t.Errorf("CreateIfAbsent 失败: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if created {
				winners++
			}
			recordIDs[rec.RecordID] = true
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("应只有一次写入成功，实际 %d", winners)
	}
	if len(recordIDs) != 1 {
		t.Errorf("所有调用应返回同一条记录，实际 %d 条", len(recordIDs))
	}

	records, err := repo.Attendance.ListByIncident(ctx, inc.IncidentID)
	if err != nil {
		t.Fatalf("ListByIncident 失败: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("数据库中应只有 1 条记录，实际 %d", len(records))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 求助单例
// ═══════════════════════════════════════════════════════════

func TestHelpRequest_SingletonAcrossReopen(t *testing.T) {
	res, users, cleanup := setupResidence(t, 1)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	inc := newActiveIncident(res.ResidenceID)
	if err := repo.Incident.Create(ctx, inc); err != nil {
		t.Fatalf("创建事件失败: %v", err)
	}

	t0 := time.Now().UTC().Truncate(time.Microsecond)
	open := func(at time.Time) *model.HelpRequest {
		req, err := repo.HelpRequest.Open(ctx, &model.HelpRequest{
			IncidentID: inc.IncidentID,
			UserID:     users[0].UserID,
			StudentID:  users[0].StudentID,
			CreatedAt:  at,
			UpdatedAt:  at,
		})
		if err != nil {
			t.Fatalf("Open 失败: %v", err)
		}
		return req
	}

	first := open(t0)
	if _, err := repo.HelpRequest.Resolve(ctx, inc.IncidentID, users[0].UserID, t0.Add(time.Second)); err != nil {
		t.Fatalf("Resolve 失败: %v", err)
	}
	again := open(t0.Add(2 * time.Second))

	if again.Version != first.Version+2 {
		t.Errorf("version 应递增两次: first=%d again=%d", first.Version, again.Version)
	}
	if !again.CreatedAt.Equal(t0) {
		t.Errorf("created_at 应保留首次值: %v", again.CreatedAt)
	}
	if !again.UpdatedAt.After(first.UpdatedAt) {
		t.Error("updated_at 应前进")
	}

	reqs, err := repo.HelpRequest.ListOpen(ctx, inc.IncidentID)
	if err != nil {
		t.Fatalf("ListOpen 失败: %v", err)
	}
	if len(reqs) != 1 {
		t.Errorf("应只有 1 条 open 求助，实际 %d", len(reqs))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 集合点乐观锁
// ═══════════════════════════════════════════════════════════

func TestCheckpoint_OptimisticLock(t *testing.T) {
	res, _, cleanup := setupResidence(t, 0)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	cp := &model.Checkpoint{ResidenceID: res.ResidenceID, Latitude: 1.2966, Longitude: 103.7764, RadiusMeters: 100}
	if err := repo.Checkpoint.Create(ctx, cp); err != nil {
		t.Fatalf("创建集合点失败: %v", err)
	}

	stale := *cp
	cp.RadiusMeters = 120
	if err := repo.Checkpoint.Update(ctx, cp); err != nil {
		t.Fatalf("首次更新失败: %v", err)
	}

	stale.RadiusMeters = 80
	if err := repo.Checkpoint.Update(ctx, &stale); !errors.Is(err, repository.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，得到: %v", err)
	}
}
