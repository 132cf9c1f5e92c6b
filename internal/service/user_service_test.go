package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"orgreport/internal/model"
	"orgreport/pkg/hash"
	"orgreport/pkg/token"

	"gorm.io/gorm"
)

func testJWTManager() *token.JWTManager {
	return token.NewJWTManager("test-secret", time.Hour, 24*time.Hour)
}

func userFixture(users map[string]*model.User, evaluator AccessEvaluator) (UserService, *fakeUserRepo, *fakeAuditRepo) {
	userRepo := &fakeUserRepo{
		findByUsernameFn: func(username string) (*model.User, error) {
			if u, ok := users[username]; ok {
				return u, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
	}
	audit, auditRepo := newTestAudit()
	svc := NewUserService(userRepo, evaluator, testJWTManager(), audit)
	return svc, userRepo, auditRepo
}

func TestUserService_Login(t *testing.T) {
	hashed, err := hash.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	svc, _, _ := userFixture(map[string]*model.User{
		"omar": {ID: 10, Username: "omar", IsActive: true, PasswordHash: hashed},
	}, denyAll())

	access, refresh, err := svc.Login("omar", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected non-empty token pair")
	}

	claims, err := testJWTManager().VerifyToken(access)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.UserID != 10 || claims.Username != "omar" {
		t.Errorf("claims = %+v", claims)
	}
}

// TestUserService_Login_UniformCredentialError 四种失败口径一致，防止用户枚举。
func TestUserService_Login_UniformCredentialError(t *testing.T) {
	hashed, err := hash.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	svc, _, _ := userFixture(map[string]*model.User{
		"omar":     {ID: 10, Username: "omar", IsActive: true, PasswordHash: hashed},
		"inactive": {ID: 11, Username: "inactive", IsActive: false, PasswordHash: hashed},
		"botonly":  {ID: 12, Username: "botonly", IsActive: true, PasswordHash: ""},
	}, denyAll())

	cases := []struct {
		name, username, password string
	}{
		{"unknown user", "ghost", "whatever"},
		{"deactivated user", "inactive", "s3cret"},
		{"no password set", "botonly", "s3cret"},
		{"wrong password", "omar", "wrong"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.Login(tc.username, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestUserService_Register(t *testing.T) {
	svc, repo, auditRepo := userFixture(nil, denyAll())

	var saved *model.User
	repo.upsertFn = func(user *model.User) error {
		saved = user
		return nil
	}

	user, err := svc.Register(10, "omar", "Omar", "Hassan", "o@example.com", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !user.IsActive {
		t.Error("new user must be active")
	}
	if saved == nil || saved.ID != 10 || saved.FirstName != "Omar" {
		t.Errorf("saved = %+v", saved)
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != "register_user" {
		t.Errorf("expected register_user audit entry, got %+v", auditRepo.entries)
	}
	// 审计详情记录显示名，后台排查时不用再查用户表。
	if !strings.Contains(auditRepo.entries[0].NewValue, "name=Omar Hassan") {
		t.Errorf("NewValue = %q, want display name recorded", auditRepo.entries[0].NewValue)
	}
}

// TestUserService_Register_PreservesExisting 重复注册只刷新资料，激活状态和口令不动。
func TestUserService_Register_PreservesExisting(t *testing.T) {
	created := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	svc, repo, _ := userFixture(nil, denyAll())
	repo.findByIDFn = func(userID int64) (*model.User, error) {
		return &model.User{ID: 10, Username: "omar", IsActive: false, PasswordHash: "keep", CreatedAt: created}, nil
	}

	var saved *model.User
	repo.upsertFn = func(user *model.User) error {
		saved = user
		return nil
	}

	if _, err := svc.Register(10, "omar", "Omar", "", "", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if saved.IsActive {
		t.Error("re-register must not reactivate a deactivated user")
	}
	if saved.PasswordHash != "keep" || !saved.CreatedAt.Equal(created) {
		t.Errorf("existing fields clobbered: %+v", saved)
	}
}

func TestUserService_Register_InvalidInput(t *testing.T) {
	svc, _, _ := userFixture(nil, denyAll())

	if _, err := svc.Register(0, "x", "X", "", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero id: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.Register(10, "x", "  ", "", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank first name: err = %v, want ErrInvalidInput", err)
	}
}

// TestUserService_SetActive_SelfDeactivationBlocked 不允许自己停用自己。
func TestUserService_SetActive_SelfDeactivationBlocked(t *testing.T) {
	svc, repo, _ := userFixture(nil, allowAll())

	touched := false
	repo.setActiveFn = func(userID int64, active bool) error {
		touched = true
		return nil
	}

	if err := svc.SetActive(10, 10, false); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if touched {
		t.Error("repo must not be touched on refused self-deactivation")
	}

	// 自己重新激活自己是允许的（虽然停用的账号实际上发不出该请求）。
	if err := svc.SetActive(10, 10, true); err != nil {
		t.Fatalf("self-activate err = %v", err)
	}
}

func TestUserService_SetActive(t *testing.T) {
	svc, repo, auditRepo := userFixture(nil, allowAll())

	var gotUser int64
	var gotActive bool
	repo.setActiveFn = func(userID int64, active bool) error {
		gotUser = userID
		gotActive = active
		return nil
	}

	if err := svc.SetActive(1, 10, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if gotUser != 10 || gotActive {
		t.Errorf("SetActive forwarded (%d, %v), want (10, false)", gotUser, gotActive)
	}
	if len(auditRepo.entries) != 1 || auditRepo.entries[0].Action != "set_user_active" {
		t.Errorf("expected set_user_active audit entry, got %+v", auditRepo.entries)
	}
}

func TestUserService_SetActive_NotFound(t *testing.T) {
	svc, repo, _ := userFixture(nil, allowAll())
	repo.setActiveFn = func(userID int64, active bool) error {
		return gorm.ErrRecordNotFound
	}

	if err := svc.SetActive(1, 10, false); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

// TestUserService_List_Gated 用户列表只对全局用户管理权放行。
func TestUserService_List_Gated(t *testing.T) {
	svc, repo, _ := userFixture(nil, denyAll())
	repo.findAllFn = func(activeOnly bool) ([]model.User, error) {
		t.Fatal("repo must not be queried when permission is denied")
		return nil, nil
	}

	if _, err := svc.List(10, false); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestUserService_List_GlobalScope(t *testing.T) {
	var gotDept uint = 1
	evaluator := &fakeEvaluator{
		canActFn: func(userID int64, capability model.Capability, departmentID uint) (bool, error) {
			gotDept = departmentID
			return true, nil
		},
	}
	svc, repo, _ := userFixture(nil, evaluator)
	repo.findAllFn = func(activeOnly bool) ([]model.User, error) {
		return []model.User{{ID: 10}}, nil
	}

	users, err := svc.List(1, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("got %d users, want 1", len(users))
	}
	// 用户管理是全局动作，求值必须用 department 0。
	if gotDept != 0 {
		t.Errorf("CanAct department = %d, want 0", gotDept)
	}
}

func TestUserService_GetProfile_NotFound(t *testing.T) {
	svc, _, _ := userFixture(nil, denyAll())

	if _, err := svc.GetProfile(404); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
