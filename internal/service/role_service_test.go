package service

import (
	"errors"
	"testing"
	"time"

	"orgreport/internal/model"

	"gorm.io/gorm"
)

func activeDeptRepo() *fakeDeptRepo {
	return &fakeDeptRepo{
		findByIDFn: func(id uint) (*model.Department, error) {
			return &model.Department{ID: id, Name: "D", IsActive: true}, nil
		},
	}
}

func registeredUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		findByIDFn: func(userID int64) (*model.User, error) {
			return activeUser(userID), nil
		},
	}
}

// adminEvaluator 模拟全局 admin 操作者。
func adminEvaluator() *fakeEvaluator {
	return &fakeEvaluator{
		canActFn:      func(int64, model.Capability, uint) (bool, error) { return true, nil },
		highestRankFn: func(int64) (int, bool, error) { return 99, true, nil },
	}
}

func TestRoleService_Assign_NewAssignment(t *testing.T) {
	var created *model.RoleAssignment
	roleRepo := &fakeRoleRepo{
		createAssignmentFn: func(a *model.RoleAssignment) error {
			a.ID = 5
			created = a
			return nil
		},
	}
	audit, auditRepo := newTestAudit()
	svc := NewRoleService(roleRepo, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Assign(1, 100, model.RoleManager, uintPtr(2), nil); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if created == nil || created.UserID != 100 || !created.IsActive {
		t.Fatalf("unexpected assignment: %+v", created)
	}
	if created.AssignedBy != 1 {
		t.Errorf("AssignedBy = %d, want 1", created.AssignedBy)
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != "assign_role" {
		t.Errorf("expected assign_role audit entry, got %+v", auditRepo.entries)
	}
}

func TestRoleService_Assign_UnknownRole(t *testing.T) {
	audit, _ := newTestAudit()
	svc := NewRoleService(&fakeRoleRepo{}, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Assign(1, 100, "superuser", uintPtr(2), nil); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("err = %v, want ErrUnknownRole", err)
	}
}

// TestRoleService_Assign_NonAdminNeedsScope 非 admin 角色必须落在某个部门。
func TestRoleService_Assign_NonAdminNeedsScope(t *testing.T) {
	audit, _ := newTestAudit()
	svc := NewRoleService(&fakeRoleRepo{}, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Assign(1, 100, model.RoleManager, nil, nil); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("err = %v, want ErrInvalidScope", err)
	}
}

// TestRoleService_Assign_AdminGlobalScope admin 可以不绑部门（全局指派）。
func TestRoleService_Assign_AdminGlobalScope(t *testing.T) {
	var created *model.RoleAssignment
	roleRepo := &fakeRoleRepo{
		createAssignmentFn: func(a *model.RoleAssignment) error {
			created = a
			return nil
		},
	}
	audit, _ := newTestAudit()
	svc := NewRoleService(roleRepo, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Assign(1, 100, model.RoleAdmin, nil, nil); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if created == nil || created.DepartmentID != nil {
		t.Fatalf("admin assignment should have nil department, got %+v", created)
	}
}

// TestRoleService_Assign_RankCeiling 非 admin 操作者不得授予等级不低于自己的角色。
func TestRoleService_Assign_RankCeiling(t *testing.T) {
	evaluator := &fakeEvaluator{
		canActFn:      func(int64, model.Capability, uint) (bool, error) { return true, nil },
		highestRankFn: func(int64) (int, bool, error) { return 70, false, nil }, // upper_manager
	}
	audit, _ := newTestAudit()
	svc := NewRoleService(&fakeRoleRepo{}, registeredUserRepo(), activeDeptRepo(), evaluator, audit)

	// 70 授 50：可以。
	if err := svc.Assign(1, 100, model.RoleManager, uintPtr(2), nil); err != nil {
		t.Fatalf("Assign(manager) error = %v", err)
	}
	// 70 授 70：不行。
	if err := svc.Assign(1, 100, model.RoleUpperManager, uintPtr(2), nil); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Assign(upper_manager) err = %v, want ErrPermissionDenied", err)
	}
	// 70 授 99：更不行。
	if err := svc.Assign(1, 100, model.RoleAdmin, nil, nil); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Assign(admin) err = %v, want ErrPermissionDenied", err)
	}
}

// TestRoleService_Assign_ActiveDuplicateIsNoop 重复授予已激活的指派按幂等成功处理。
func TestRoleService_Assign_ActiveDuplicateIsNoop(t *testing.T) {
	createCalled := false
	roleRepo := &fakeRoleRepo{
		findAssignmentFn: func(int64, uint, *uint) (*model.RoleAssignment, error) {
			return &model.RoleAssignment{ID: 7, IsActive: true}, nil
		},
		createAssignmentFn: func(*model.RoleAssignment) error {
			createCalled = true
			return nil
		},
	}
	audit, auditRepo := newTestAudit()
	svc := NewRoleService(roleRepo, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Assign(1, 100, model.RoleManager, uintPtr(2), nil); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if createCalled {
		t.Error("duplicate assign must not create a second row")
	}
	if len(auditRepo.entries) != 0 {
		t.Error("no-op assign must not write audit entries")
	}
}

// TestRoleService_Assign_ReactivatesRevokedRow 撤销后再授予要复活旧行而不是新建。
func TestRoleService_Assign_ReactivatesRevokedRow(t *testing.T) {
	reactivated := uint(0)
	roleRepo := &fakeRoleRepo{
		findAssignmentFn: func(int64, uint, *uint) (*model.RoleAssignment, error) {
			return &model.RoleAssignment{ID: 7, IsActive: false}, nil
		},
		reactivateFn: func(assignmentID uint, assignedBy int64) error {
			reactivated = assignmentID
			return nil
		},
		createAssignmentFn: func(*model.RoleAssignment) error {
			t.Error("must reactivate, not create")
			return nil
		},
	}
	audit, _ := newTestAudit()
	svc := NewRoleService(roleRepo, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Assign(1, 100, model.RoleManager, uintPtr(2), nil); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if reactivated != 7 {
		t.Errorf("reactivated id = %d, want 7", reactivated)
	}
}

// TestRoleService_Assign_ExpiredRowReactivated 过期但仍标激活的行也走复活路径，清掉过期时间。
func TestRoleService_Assign_ExpiredRowReactivated(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	reactivated := false
	roleRepo := &fakeRoleRepo{
		findAssignmentFn: func(int64, uint, *uint) (*model.RoleAssignment, error) {
			return &model.RoleAssignment{ID: 7, IsActive: true, ExpiresAt: &expired}, nil
		},
		reactivateFn: func(uint, int64) error {
			reactivated = true
			return nil
		},
	}
	audit, _ := newTestAudit()
	svc := NewRoleService(roleRepo, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Assign(1, 100, model.RoleManager, uintPtr(2), nil); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if !reactivated {
		t.Fatal("expired assignment should be reactivated")
	}
}

func TestRoleService_Assign_TargetUserMissing(t *testing.T) {
	userRepo := &fakeUserRepo{
		findByIDFn: func(int64) (*model.User, error) { return nil, gorm.ErrRecordNotFound },
	}
	audit, _ := newTestAudit()
	svc := NewRoleService(&fakeRoleRepo{}, userRepo, activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Assign(1, 100, model.RoleManager, uintPtr(2), nil); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

// TestRoleService_Revoke_Idempotent 撤销不存在的指派也返回成功，且不写审计。
func TestRoleService_Revoke_Idempotent(t *testing.T) {
	roleRepo := &fakeRoleRepo{
		deactivateMatchingFn: func(int64, uint, *uint) (int64, error) { return 0, nil },
	}
	audit, auditRepo := newTestAudit()
	svc := NewRoleService(roleRepo, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Revoke(1, 100, model.RoleManager, uintPtr(2)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if len(auditRepo.entries) != 0 {
		t.Error("no-op revoke must not write audit entries")
	}
}

func TestRoleService_Revoke_WritesAudit(t *testing.T) {
	roleRepo := &fakeRoleRepo{
		deactivateMatchingFn: func(int64, uint, *uint) (int64, error) { return 1, nil },
	}
	audit, auditRepo := newTestAudit()
	svc := NewRoleService(roleRepo, registeredUserRepo(), activeDeptRepo(), adminEvaluator(), audit)

	if err := svc.Revoke(1, 100, model.RoleManager, uintPtr(2)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != "revoke_role" {
		t.Errorf("expected revoke_role audit entry, got %+v", auditRepo.entries)
	}
}

// TestRoleService_AssignRevokeRoundTrip 授予后撤销，求值器不再看到该指派。
// 这里串起真实的 evaluator 验证端到端语义。
func TestRoleService_AssignRevokeRoundTrip(t *testing.T) {
	// 内存指派表。
	rows := make([]model.RoleAssignment, 0)
	nextID := uint(1)
	roleRepo := &fakeRoleRepo{
		createAssignmentFn: func(a *model.RoleAssignment) error {
			a.ID = nextID
			nextID++
			rows = append(rows, *a)
			return nil
		},
		findAssignmentFn: func(userID int64, roleID uint, departmentID *uint) (*model.RoleAssignment, error) {
			for i := range rows {
				if rows[i].UserID == userID && rows[i].RoleID == roleID {
					return &rows[i], nil
				}
			}
			return nil, gorm.ErrRecordNotFound
		},
		deactivateMatchingFn: func(userID int64, roleID uint, departmentID *uint) (int64, error) {
			var n int64
			for i := range rows {
				if rows[i].UserID == userID && rows[i].RoleID == roleID && rows[i].IsActive {
					rows[i].IsActive = false
					n++
				}
			}
			return n, nil
		},
		findActiveByUserFn: func(userID int64) ([]model.RoleAssignment, error) {
			out := make([]model.RoleAssignment, 0)
			for _, r := range rows {
				if r.UserID == userID && r.IsActive {
					out = append(out, r)
				}
			}
			return out, nil
		},
	}

	deptRepo := chartRepo(orgChart())
	userRepo := registeredUserRepo()
	hierarchy := NewHierarchyService(deptRepo)
	evaluator := NewAccessEvaluator(userRepo, roleRepo, deptRepo, hierarchy)
	audit, _ := newTestAudit()

	// 操作者是全局 admin，直接在指派表里种一行。
	adminRow := model.RoleAssignment{ID: 900, UserID: 1, RoleID: roleID(model.RoleAdmin), IsActive: true}
	rows = append(rows, adminRow)
	nextID = 901

	svc := NewRoleService(roleRepo, userRepo, deptRepo, evaluator, audit)

	if err := svc.Assign(1, 100, model.RoleManager, uintPtr(2), nil); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	allowed, err := evaluator.CanAct(100, model.CapApprove, 2)
	if err != nil || !allowed {
		t.Fatalf("after assign: allowed=%v err=%v, want approve granted", allowed, err)
	}

	if err := svc.Revoke(1, 100, model.RoleManager, uintPtr(2)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	allowed, err = evaluator.CanAct(100, model.CapApprove, 2)
	if err != nil {
		t.Fatalf("CanAct() error = %v", err)
	}
	if allowed {
		t.Fatal("after revoke the capability must be gone")
	}
}
