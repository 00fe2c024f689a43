package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/repository"
)

// ── 内存 Mock 存储 ──
// 所有 mock 共享一把锁，条件写入在锁内完成，对应数据库的唯一约束与条件更新

type mockStore struct {
	mu  sync.Mutex
	seq int

	residences  map[string]*model.Residence
	checkpoints map[string]*model.Checkpoint // key: residence_id
	users       map[string]*model.User       // key: user_id
	grants      map[string]*model.AccessGrant
	assignments map[string]*model.SupervisorAssignment
	incidents   map[string]*model.Incident
	attendance  map[string]*model.AttendanceRecord // key: incident_id|user_id
	help        map[string]*model.HelpRequest      // key: incident_id|user_id
	audit       []model.AuditLog
}

func newMockStore() *mockStore {
	return &mockStore{
		residences:  make(map[string]*model.Residence),
		checkpoints: make(map[string]*model.Checkpoint),
		users:       make(map[string]*model.User),
		grants:      make(map[string]*model.AccessGrant),
		assignments: make(map[string]*model.SupervisorAssignment),
		incidents:   make(map[string]*model.Incident),
		attendance:  make(map[string]*model.AttendanceRecord),
		help:        make(map[string]*model.HelpRequest),
	}
}

func (s *mockStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func pairKey(incidentID, userID string) string { return incidentID + "|" + userID }

// repository 组装 Repository 聚合（未绑定数据库，Transaction 直接执行）
func (s *mockStore) repository() *repository.Repository {
	return &repository.Repository{
		Residence:            &mockResidenceRepo{s},
		Checkpoint:           &mockCheckpointRepo{s},
		User:                 &mockUserRepo{s},
		AccessGrant:          &mockAccessGrantRepo{s},
		SupervisorAssignment: &mockAssignmentRepo{s},
		Incident:             &mockIncidentRepo{s},
		Attendance:           &mockAttendanceRepo{s},
		HelpRequest:          &mockHelpRepo{s},
		AuditLog:             &mockAuditRepo{s},
	}
}

// ── Residence ──

type mockResidenceRepo struct{ s *mockStore }

func (m *mockResidenceRepo) Create(_ context.Context, r *model.Residence) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r.ResidenceID == "" {
		r.ResidenceID = m.s.nextID("res")
	}
	cp := *r
	m.s.residences[r.ResidenceID] = &cp
	return nil
}

func (m *mockResidenceRepo) GetByID(_ context.Context, id string) (*model.Residence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.residences[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *r
	if c, ok := m.s.checkpoints[id]; ok {
		cc := *c
		out.Checkpoint = &cc
	}
	return &out, nil
}

func (m *mockResidenceRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Residence, error) {
	return m.GetByID(ctx, id)
}

func (m *mockResidenceRepo) List(ctx context.Context) ([]model.Residence, error) {
	m.s.mu.Lock()
	ids := make([]string, 0, len(m.s.residences))
	for id := range m.s.residences {
		ids = append(ids, id)
	}
	m.s.mu.Unlock()
	sort.Strings(ids)

	var result []model.Residence
	for _, id := range ids {
		r, _ := m.GetByID(ctx, id)
		result = append(result, *r)
	}
	return result, nil
}

func (m *mockResidenceRepo) UpdateName(_ context.Context, id, name string, updatedBy *string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.residences[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Name = name
	r.UpdatedBy = updatedBy
	return nil
}

// ── Checkpoint ──

type mockCheckpointRepo struct{ s *mockStore }

func (m *mockCheckpointRepo) GetByResidence(_ context.Context, residenceID string) (*model.Checkpoint, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.checkpoints[residenceID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockCheckpointRepo) Create(_ context.Context, c *model.Checkpoint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.checkpoints[c.ResidenceID]; ok {
		return repository.ErrDuplicate
	}
	if c.CheckpointID == "" {
		c.CheckpointID = m.s.nextID("cp")
	}
	if c.Version == 0 {
		c.Version = 1
	}
	cp := *c
	m.s.checkpoints[c.ResidenceID] = &cp
	return nil
}

func (m *mockCheckpointRepo) Update(_ context.Context, c *model.Checkpoint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.checkpoints[c.ResidenceID]
	if !ok || cur.Version != c.Version {
		return repository.ErrOptimisticLock
	}
	c.Version++
	cp := *c
	m.s.checkpoints[c.ResidenceID] = &cp
	return nil
}

func (m *mockCheckpointRepo) DeleteByResidence(_ context.Context, residenceID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.checkpoints[residenceID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.checkpoints, residenceID)
	return nil
}

// ── User ──

type mockUserRepo struct{ s *mockStore }

func (m *mockUserRepo) Create(_ context.Context, u *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.users[u.UserID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range m.s.users {
		if existing.StudentID == u.StudentID {
			return repository.ErrDuplicate
		}
	}
	if u.Role == "" {
		u.Role = model.RoleResident
	}
	cp := *u
	m.s.users[u.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepo) GetByStudentID(_ context.Context, studentID string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.StudentID == studentID {
			out := *u
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByResidence(_ context.Context, residenceID string) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.User
	for _, u := range m.s.users {
		if u.ResidenceID == residenceID {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

// ── AccessGrant ──

type mockAccessGrantRepo struct{ s *mockStore }

func (m *mockAccessGrantRepo) Exists(_ context.Context, studentID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.grants[studentID]
	return ok, nil
}

func (m *mockAccessGrantRepo) FilterGranted(_ context.Context, ids []string) (map[string]bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	result := make(map[string]bool)
	for _, id := range ids {
		if _, ok := m.s.grants[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

func (m *mockAccessGrantRepo) Create(_ context.Context, g *model.AccessGrant) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.grants[g.StudentID]; ok {
		return false, nil
	}
	cp := *g
	m.s.grants[g.StudentID] = &cp
	return true, nil
}

func (m *mockAccessGrantRepo) Delete(_ context.Context, studentID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.grants[studentID]; !ok {
		return false, nil
	}
	delete(m.s.grants, studentID)
	return true, nil
}

func (m *mockAccessGrantRepo) List(_ context.Context) ([]model.AccessGrant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.AccessGrant
	for _, g := range m.s.grants {
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

// ── SupervisorAssignment ──

type mockAssignmentRepo struct{ s *mockStore }

func (m *mockAssignmentRepo) GetByStudentID(_ context.Context, studentID string) (*model.SupervisorAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.assignments[studentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *a
	return &out, nil
}

func (m *mockAssignmentRepo) Upsert(_ context.Context, a *model.SupervisorAssignment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *a
	m.s.assignments[a.StudentID] = &cp
	return nil
}

func (m *mockAssignmentRepo) Delete(_ context.Context, studentID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.assignments[studentID]; !ok {
		return false, nil
	}
	delete(m.s.assignments, studentID)
	return true, nil
}

// ── Incident ──

type mockIncidentRepo struct{ s *mockStore }

func (m *mockIncidentRepo) Create(_ context.Context, inc *model.Incident) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	// 部分唯一索引
	for _, existing := range m.s.incidents {
		if existing.ResidenceID == inc.ResidenceID && existing.Status == model.IncidentActive {
			return repository.ErrDuplicate
		}
	}
	if inc.IncidentID == "" {
		inc.IncidentID = m.s.nextID("inc")
	}
	cp := *inc
	m.s.incidents[inc.IncidentID] = &cp
	return nil
}

func (m *mockIncidentRepo) GetByID(_ context.Context, id string) (*model.Incident, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inc, ok := m.s.incidents[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *inc
	return &out, nil
}

func (m *mockIncidentRepo) GetByIDForShare(ctx context.Context, id string) (*model.Incident, error) {
	return m.GetByID(ctx, id)
}

func (m *mockIncidentRepo) GetActiveByResidence(_ context.Context, residenceID string) (*model.Incident, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, inc := range m.s.incidents {
		if inc.ResidenceID == residenceID && inc.Status == model.IncidentActive {
			out := *inc
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockIncidentRepo) ListByResidence(_ context.Context, residenceID string) ([]model.Incident, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Incident
	for _, inc := range m.s.incidents {
		if inc.ResidenceID == residenceID {
			result = append(result, *inc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	return result, nil
}

func (m *mockIncidentRepo) End(_ context.Context, id, actorID string, endedAt time.Time) (*model.Incident, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inc, ok := m.s.incidents[id]
	if !ok || inc.Status != model.IncidentActive {
		return nil, repository.ErrIncidentNotActive
	}
	inc.Status = model.IncidentEnded
	inc.EndedAt = &endedAt
	inc.EndedBy = &actorID
	out := *inc
	return &out, nil
}

func (m *mockIncidentRepo) CountActive(_ context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, inc := range m.s.incidents {
		if inc.Status == model.IncidentActive {
			n++
		}
	}
	return n, nil
}

// ── Attendance ──

type mockAttendanceRepo struct{ s *mockStore }

func (m *mockAttendanceRepo) CreateIfAbsent(_ context.Context, rec *model.AttendanceRecord) (*model.AttendanceRecord, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := pairKey(rec.IncidentID, rec.UserID)
	if existing, ok := m.s.attendance[key]; ok {
		out := *existing
		return &out, false, nil
	}
	if rec.RecordID == "" {
		rec.RecordID = m.s.nextID("rec")
	}
	cp := *rec
	m.s.attendance[key] = &cp
	out := cp
	return &out, true, nil
}

func (m *mockAttendanceRepo) GetByIncidentAndUser(_ context.Context, incidentID, userID string) (*model.AttendanceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rec, ok := m.s.attendance[pairKey(incidentID, userID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *rec
	return &out, nil
}

func (m *mockAttendanceRepo) ListByIncident(_ context.Context, incidentID string) ([]model.AttendanceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.AttendanceRecord
	for _, rec := range m.s.attendance {
		if rec.IncidentID == incidentID {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountedAt.Before(result[j].AccountedAt) })
	return result, nil
}

// ── HelpRequest ──

type mockHelpRepo struct{ s *mockStore }

func (m *mockHelpRepo) Open(_ context.Context, req *model.HelpRequest) (*model.HelpRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := pairKey(req.IncidentID, req.UserID)
	if existing, ok := m.s.help[key]; ok {
		existing.Status = model.HelpOpen
		existing.UpdatedAt = req.UpdatedAt
		existing.RoomLabel = req.RoomLabel
		existing.Version++
		out := *existing
		return &out, nil
	}
	cp := *req
	cp.Status = model.HelpOpen
	cp.Version = 1
	m.s.help[key] = &cp
	out := cp
	return &out, nil
}

func (m *mockHelpRepo) Resolve(_ context.Context, incidentID, userID string, at time.Time) (*model.HelpRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	existing, ok := m.s.help[pairKey(incidentID, userID)]
	if !ok || existing.Status != model.HelpOpen {
		return nil, gorm.ErrRecordNotFound
	}
	existing.Status = model.HelpResolved
	existing.UpdatedAt = at
	existing.Version++
	out := *existing
	return &out, nil
}

func (m *mockHelpRepo) Get(_ context.Context, incidentID, userID string) (*model.HelpRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	existing, ok := m.s.help[pairKey(incidentID, userID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *existing
	return &out, nil
}

func (m *mockHelpRepo) ListOpen(_ context.Context, incidentID string) ([]model.HelpRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.HelpRequest
	for _, r := range m.s.help {
		if r.IncidentID == incidentID && r.Status == model.HelpOpen {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	return result, nil
}

// ── AuditLog ──

type mockAuditRepo struct{ s *mockStore }

func (m *mockAuditRepo) Append(_ context.Context, e *model.AuditLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e.AuditLogID = int64(len(m.s.audit) + 1)
	m.s.audit = append(m.s.audit, *e)
	return nil
}

func (m *mockAuditRepo) ListByIncident(_ context.Context, incidentID string, offset, limit int) ([]model.AuditLog, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.AuditLog
	for _, e := range m.s.audit {
		if e.IncidentID == incidentID {
			all = append(all, e)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}
