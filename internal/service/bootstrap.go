package service

import (
	"errors"
	"fmt"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/repository"
	"orgreport/pkg/hash"
	"orgreport/pkg/log"

	"gorm.io/gorm"
)

// EnsureDefaultAdmin 在启动时幂等地种入默认管理员。
//
// 授权全部由库里的指派求值，而 Assign 本身又要求 manage_users 能力，
// 一个空库里没有任何人能迈出第一步。这里绕过 service 层的权限门，
// 直接用仓库保证两件事成立：
//  1. 配置的管理员账号存在、激活、且持有口令哈希（机器人端先注册过的
//     账号只补口令，不覆盖资料）；
//  2. 该账号持有一条激活的全局 admin 指派。
//
// username 或 password 为空时引导整体关闭，只打一条告警。
func EnsureDefaultAdmin(userRepo repository.UserRepository, roleRepo repository.RoleRepository,
	audit AuditRecorder, userID int64, username, password string) error {
	if username == "" || password == "" {
		log.Warnf("default admin not configured, skipping bootstrap; role assignment requires an existing admin")
		return nil
	}
	if userID == 0 {
		return fmt.Errorf("bootstrap admin: user id is required")
	}

	user, err := userRepo.FindByUsername(username)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashed, err := hash.HashPassword(password)
		if err != nil {
			return fmt.Errorf("bootstrap admin: hash password: %w", err)
		}
		user = &model.User{
			ID:           userID,
			Username:     username,
			FirstName:    "Admin",
			IsActive:     true,
			PasswordHash: hashed,
		}
		if err := userRepo.Upsert(user); err != nil {
			return fmt.Errorf("bootstrap admin: create user: %w", err)
		}
		log.Infof("bootstrap: created default admin user %q (%d)", username, userID)
	case err != nil:
		return fmt.Errorf("bootstrap admin: query user: %w", err)
	default:
		// 账号已存在（比如机器人端先注册过）：只补缺口，不动资料。
		if user.PasswordHash == "" {
			hashed, err := hash.HashPassword(password)
			if err != nil {
				return fmt.Errorf("bootstrap admin: hash password: %w", err)
			}
			if err := userRepo.UpdatePasswordHash(user.ID, hashed); err != nil {
				return fmt.Errorf("bootstrap admin: set password: %w", err)
			}
			log.Infof("bootstrap: set password for existing admin user %q", username)
		}
		if !user.IsActive {
			if err := userRepo.SetActive(user.ID, true); err != nil {
				return fmt.Errorf("bootstrap admin: reactivate user: %w", err)
			}
			log.Infof("bootstrap: reactivated admin user %q", username)
		}
	}

	role, err := roleRepo.FindRoleByName(model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: find admin role: %w", err)
	}

	a, err := roleRepo.FindAssignment(user.ID, role.ID, nil)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		grant := &model.RoleAssignment{
			UserID:     user.ID,
			RoleID:     role.ID,
			IsActive:   true,
			AssignedBy: user.ID,
		}
		if err := roleRepo.CreateAssignment(grant); err != nil {
			return fmt.Errorf("bootstrap admin: create assignment: %w", err)
		}
		audit.Record(user.ID, "bootstrap_admin", "user_role", grant.ID, "",
			fmt.Sprintf("user=%d role=%s", user.ID, model.RoleAdmin))
		log.Infof("bootstrap: granted global admin to user %q", username)
	case err != nil:
		return fmt.Errorf("bootstrap admin: query assignment: %w", err)
	default:
		if !a.IsActive || a.Expired(time.Now()) {
			if err := roleRepo.Reactivate(a.ID, user.ID); err != nil {
				return fmt.Errorf("bootstrap admin: reactivate assignment: %w", err)
			}
			audit.Record(user.ID, "bootstrap_admin", "user_role", a.ID, "is_active=false",
				fmt.Sprintf("user=%d role=%s", user.ID, model.RoleAdmin))
			log.Infof("bootstrap: reactivated global admin for user %q", username)
		}
	}

	return nil
}
