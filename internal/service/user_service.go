package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/repository"
	"orgreport/pkg/database"
	"orgreport/pkg/hash"
	"orgreport/pkg/log"
	"orgreport/pkg/token"

	"gorm.io/gorm"
)

// UserService 封装用户账号逻辑。
// 两类入口共用同一行用户记录：
//   - 机器人端注册（Register）：只有外部用户 id 和资料，没有口令；
//   - 管理后台登录（Login）：bcrypt 校验口令、签发 JWT。
//
// 身份认证到此为止——后续每个操作的授权都由 AccessEvaluator 按库里的
// 指派重新求值，永远不信任令牌里携带的角色声明。
type UserService interface {
	// Register 创建或更新用户资料。重复注册不是错误，按资料更新处理。
	Register(userID int64, username, firstName, lastName, email, phone string) (*model.User, error)
	Login(username, password string) (accessToken, refreshToken string, err error)
	// Logout 把 access token 写入 Redis 黑名单直至其自然过期。
	Logout(tokenString string) error
	GetProfile(userID int64) (*model.User, error)
	GetByUsername(username string) (*model.User, error)
	List(actorID int64, activeOnly bool) ([]model.User, error)
	// SetActive 启停用户。停用后该用户的一切 CanAct 求值都会被拒。
	SetActive(actorID, userID int64, active bool) error
}

type userService struct {
	userRepo   repository.UserRepository
	evaluator  AccessEvaluator
	jwtManager *token.JWTManager
	audit      AuditRecorder
}

func NewUserService(userRepo repository.UserRepository, evaluator AccessEvaluator,
	jwtManager *token.JWTManager, audit AuditRecorder) UserService {
	return &userService{
		userRepo:   userRepo,
		evaluator:  evaluator,
		jwtManager: jwtManager,
		audit:      audit,
	}
}

func (s *userService) Register(userID int64, username, firstName, lastName, email, phone string) (*model.User, error) {
	if s.userRepo == nil {
		return nil, ErrInternal
	}

	firstName = strings.TrimSpace(firstName)
	if userID == 0 || firstName == "" {
		return nil, ErrInvalidInput
	}

	// 已注册用户保留激活状态和口令哈希，只刷新资料。
	user := &model.User{
		ID:        userID,
		Username:  strings.TrimSpace(username),
		FirstName: firstName,
		LastName:  strings.TrimSpace(lastName),
		Email:     strings.TrimSpace(email),
		Phone:     strings.TrimSpace(phone),
		IsActive:  true,
	}
	if existing, err := s.userRepo.FindByID(userID); err == nil {
		user.IsActive = existing.IsActive
		user.PasswordHash = existing.PasswordHash
		user.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := s.userRepo.Upsert(user); err != nil {
		return nil, err
	}

	s.audit.Record(userID, "register_user", "user", uint(userID), "",
		fmt.Sprintf("username=%s name=%s", user.Username, user.FullName()))
	return user, nil
}

func (s *userService) Login(username, password string) (string, string, error) {
	if s.userRepo == nil || s.jwtManager == nil {
		return "", "", ErrInternal
	}

	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户不存在，返回统一的凭证错误，防止用户枚举。
			return "", "", ErrInvalidCredentials
		}
		log.Errorf("Login: failed to query user %q: %v", username, err)
		return "", "", ErrInternal
	}

	// 停用的账号和没有口令（纯机器人注册）的账号都按凭证错误处理，口径一致。
	if !user.IsActive || user.PasswordHash == "" {
		return "", "", ErrInvalidCredentials
	}
	if !hash.CheckPasswordHash(password, user.PasswordHash) {
		return "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		log.Errorf("Login: failed to generate token for user %q: %v", user.Username, err)
		return "", "", ErrInternal
	}
	return accessToken, refreshToken, nil
}

func (s *userService) Logout(tokenString string) error {
	if s.jwtManager == nil || database.RDB == nil {
		return ErrInternal
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ErrInvalidInput
	}

	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil || claims == nil || claims.ExpiresAt == nil {
		// 无法解析的令牌没有登出的意义，直接视为成功。
		return nil
	}

	// 黑名单 key 与认证中间件使用同一前缀，TTL 对齐令牌剩余寿命。
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	blacklistKey := "token_blacklist:" + tokenString
	if err := database.RDB.Set(context.Background(), blacklistKey, "1", ttl).Err(); err != nil {
		log.Errorf("Logout: failed to blacklist token: %v", err)
		return ErrInternal
	}
	return nil
}

func (s *userService) GetProfile(userID int64) (*model.User, error) {
	if s.userRepo == nil {
		return nil, ErrInternal
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Errorf("GetProfile: failed to query user %d: %v", userID, err)
		return nil, ErrInternal
	}
	return user, nil
}

func (s *userService) GetByUsername(username string) (*model.User, error) {
	if s.userRepo == nil {
		return nil, ErrInternal
	}
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, ErrInternal
	}
	return user, nil
}

func (s *userService) List(actorID int64, activeOnly bool) ([]model.User, error) {
	if s.userRepo == nil || s.evaluator == nil {
		return nil, ErrInternal
	}

	allowed, err := s.evaluator.CanAct(actorID, model.CapManageUsers, 0)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}
	return s.userRepo.FindAll(activeOnly)
}

func (s *userService) SetActive(actorID, userID int64, active bool) error {
	if s.userRepo == nil || s.evaluator == nil {
		return ErrInternal
	}

	// 不允许自己停用自己：防止系统失去最后一个管理员。
	if !active && actorID == userID {
		return ErrPermissionDenied
	}

	allowed, err := s.evaluator.CanAct(actorID, model.CapManageUsers, 0)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}

	if err := s.userRepo.SetActive(userID, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.audit.Record(actorID, "set_user_active", "user", uint(userID),
		fmt.Sprintf("is_active=%v", !active), fmt.Sprintf("is_active=%v", active))
	return nil
}
