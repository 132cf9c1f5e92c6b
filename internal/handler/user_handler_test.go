package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/service"

	"github.com/gin-gonic/gin"
)

type fakeUserService struct {
	registerFn      func(userID int64, username, firstName, lastName, email, phone string) (*model.User, error)
	loginFn         func(username, password string) (string, string, error)
	logoutFn        func(tokenString string) error
	getProfileFn    func(userID int64) (*model.User, error)
	getByUsernameFn func(username string) (*model.User, error)
	listFn          func(actorID int64, activeOnly bool) ([]model.User, error)
	setActiveFn     func(actorID, userID int64, active bool) error
}

func (f *fakeUserService) Register(userID int64, username, firstName, lastName, email, phone string) (*model.User, error) {
	if f.registerFn != nil {
		return f.registerFn(userID, username, firstName, lastName, email, phone)
	}
	return &model.User{ID: userID, Username: username, FirstName: firstName, IsActive: true}, nil
}

func (f *fakeUserService) Login(username, password string) (string, string, error) {
	if f.loginFn != nil {
		return f.loginFn(username, password)
	}
	return "access", "refresh", nil
}

func (f *fakeUserService) Logout(tokenString string) error {
	if f.logoutFn != nil {
		return f.logoutFn(tokenString)
	}
	return nil
}

func (f *fakeUserService) GetProfile(userID int64) (*model.User, error) {
	if f.getProfileFn != nil {
		return f.getProfileFn(userID)
	}
	return &model.User{ID: userID}, nil
}

func (f *fakeUserService) GetByUsername(username string) (*model.User, error) {
	if f.getByUsernameFn != nil {
		return f.getByUsernameFn(username)
	}
	return &model.User{Username: username}, nil
}

func (f *fakeUserService) List(actorID int64, activeOnly bool) ([]model.User, error) {
	if f.listFn != nil {
		return f.listFn(actorID, activeOnly)
	}
	return []model.User{}, nil
}

func (f *fakeUserService) SetActive(actorID, userID int64, active bool) error {
	if f.setActiveFn != nil {
		return f.setActiveFn(actorID, userID, active)
	}
	return nil
}

type fakeRoleService struct {
	assignFn               func(assignerID, userID int64, roleName string, departmentID *uint, expiresAt *time.Time) error
	revokeFn               func(actorID, userID int64, roleName string, departmentID *uint) error
	effectiveAssignmentsFn func(userID int64) ([]model.EffectiveAssignment, error)
}

func (f *fakeRoleService) Assign(assignerID, userID int64, roleName string, departmentID *uint, expiresAt *time.Time) error {
	if f.assignFn != nil {
		return f.assignFn(assignerID, userID, roleName, departmentID, expiresAt)
	}
	return nil
}

func (f *fakeRoleService) Revoke(actorID, userID int64, roleName string, departmentID *uint) error {
	if f.revokeFn != nil {
		return f.revokeFn(actorID, userID, roleName, departmentID)
	}
	return nil
}

func (f *fakeRoleService) EffectiveAssignments(userID int64) ([]model.EffectiveAssignment, error) {
	if f.effectiveAssignmentsFn != nil {
		return f.effectiveAssignmentsFn(userID)
	}
	return []model.EffectiveAssignment{}, nil
}

func newUserRouter(userSvc service.UserService, roleSvc service.RoleService) *gin.Engine {
	h := NewUserHandler(userSvc, roleSvc)
	a := NewAuthHandler(userSvc)
	r := gin.New()
	r.POST("/auth/login", a.Login)
	r.POST("/users/register", h.Register)

	authed := r.Group("")
	authed.Use(withUser(1))
	authed.POST("/auth/logout", a.Logout)
	authed.GET("/auth/profile", a.Profile)
	authed.PUT("/users/:id/active", h.SetActive)
	authed.POST("/users/:id/roles", h.AssignRole)
	authed.DELETE("/users/:id/roles", h.RevokeRole)
	authed.GET("/users/:id/roles", h.ListRoles)
	return r
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &fakeUserService{
		loginFn: func(username, password string) (string, string, error) {
			if username != "omar" || password != "s3cret" {
				t.Fatalf("unexpected credentials: %q/%q", username, password)
			}
			return "acc-token", "ref-token", nil
		},
	}
	r := newUserRouter(svc, &fakeRoleService{})

	w := doReq(r, http.MethodPost, "/auth/login", `{"username":"omar","password":"s3cret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &fakeUserService{
		loginFn: func(string, string) (string, string, error) {
			return "", "", service.ErrInvalidCredentials
		},
	}
	r := newUserRouter(svc, &fakeRoleService{})

	w := doReq(r, http.MethodPost, "/auth/login", `{"username":"omar","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expect 401, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestAuthHandler_Login_MissingPassword(t *testing.T) {
	r := newUserRouter(&fakeUserService{}, &fakeRoleService{})

	w := doReq(r, http.MethodPost, "/auth/login", `{"username":"omar"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestAuthHandler_Logout_RequiresBearer(t *testing.T) {
	r := newUserRouter(&fakeUserService{}, &fakeRoleService{})

	// 没有 Authorization 头 → 400。
	w := doReq(r, http.MethodPost, "/auth/logout", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestUserHandler_Register(t *testing.T) {
	var gotID int64
	svc := &fakeUserService{
		registerFn: func(userID int64, username, firstName, lastName, email, phone string) (*model.User, error) {
			gotID = userID
			return &model.User{ID: userID, Username: username, FirstName: firstName, IsActive: true}, nil
		},
	}
	r := newUserRouter(svc, &fakeRoleService{})

	w := doReq(r, http.MethodPost, "/users/register",
		`{"user_id":123456789,"username":"omar","first_name":"Omar"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expect 201, got %d, body=%s", w.Code, w.Body.String())
	}
	if gotID != 123456789 {
		t.Fatalf("user_id not forwarded: %d", gotID)
	}
}

func TestUserHandler_Register_MissingFirstName(t *testing.T) {
	r := newUserRouter(&fakeUserService{}, &fakeRoleService{})

	w := doReq(r, http.MethodPost, "/users/register", `{"user_id":1,"username":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestUserHandler_SetActive(t *testing.T) {
	var gotActive bool
	svc := &fakeUserService{
		setActiveFn: func(actorID, userID int64, active bool) error {
			if actorID != 1 || userID != 42 {
				t.Fatalf("unexpected ids: actor=%d user=%d", actorID, userID)
			}
			gotActive = active
			return nil
		},
	}
	r := newUserRouter(svc, &fakeRoleService{})

	w := doReq(r, http.MethodPut, "/users/42/active", `{"is_active":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if gotActive {
		t.Fatal("is_active=false not forwarded")
	}
}

// is_active 是 *bool：缺字段和显式 false 必须能区分。
func TestUserHandler_SetActive_MissingFlag(t *testing.T) {
	r := newUserRouter(&fakeUserService{}, &fakeRoleService{})

	w := doReq(r, http.MethodPut, "/users/42/active", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestUserHandler_AssignRole(t *testing.T) {
	var gotRole string
	var gotExpires *time.Time
	svc := &fakeRoleService{
		assignFn: func(assignerID, userID int64, roleName string, departmentID *uint, expiresAt *time.Time) error {
			gotRole = roleName
			gotExpires = expiresAt
			return nil
		},
	}
	r := newUserRouter(&fakeUserService{}, svc)

	w := doReq(r, http.MethodPost, "/users/42/roles",
		`{"role":"manager","department_id":2,"expires_at":"2026-12-31T00:00:00Z"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if gotRole != "manager" || gotExpires == nil {
		t.Fatalf("args not forwarded: role=%q expires=%v", gotRole, gotExpires)
	}
}

func TestUserHandler_AssignRole_BadExpiry(t *testing.T) {
	r := newUserRouter(&fakeUserService{}, &fakeRoleService{})

	w := doReq(r, http.MethodPost, "/users/42/roles", `{"role":"manager","expires_at":"tomorrow"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestUserHandler_AssignRole_InvalidScope(t *testing.T) {
	svc := &fakeRoleService{
		assignFn: func(int64, int64, string, *uint, *time.Time) error {
			return service.ErrInvalidScope
		},
	}
	r := newUserRouter(&fakeUserService{}, svc)

	w := doReq(r, http.MethodPost, "/users/42/roles", `{"role":"manager"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestUserHandler_RevokeRole(t *testing.T) {
	called := false
	svc := &fakeRoleService{
		revokeFn: func(actorID, userID int64, roleName string, departmentID *uint) error {
			called = true
			return nil
		},
	}
	r := newUserRouter(&fakeUserService{}, svc)

	w := doReq(r, http.MethodDelete, "/users/42/roles", `{"role":"manager","department_id":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if !called {
		t.Fatal("Revoke not called")
	}
}

func TestUserHandler_ListRoles(t *testing.T) {
	svc := &fakeRoleService{
		effectiveAssignmentsFn: func(userID int64) ([]model.EffectiveAssignment, error) {
			return []model.EffectiveAssignment{{UserID: userID, RoleName: model.RoleManager, RoleRank: 50}}, nil
		},
	}
	r := newUserRouter(&fakeUserService{}, svc)

	w := doReq(r, http.MethodGet, "/users/42/roles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	// 指派要附带角色的静态能力集。
	if !strings.Contains(w.Body.String(), `"capabilities"`) ||
		!strings.Contains(w.Body.String(), string(model.CapApprove)) {
		t.Fatalf("expected capabilities in body, got %s", w.Body.String())
	}
}
