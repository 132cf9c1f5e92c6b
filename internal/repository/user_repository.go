package repository

import (
	"fmt"
	"orgreport/internal/model"

	"gorm.io/gorm"
)

// UserRepository 接口定义了用户数据的持久化操作。
type UserRepository interface {
	// Upsert 创建或更新用户基础资料（机器人注册走这里，重复注册不报错）。
	Upsert(user *model.User) error
	FindByID(userID int64) (*model.User, error)
	FindByUsername(username string) (*model.User, error)
	FindAll(activeOnly bool) ([]model.User, error)
	// SetActive 修改激活标记，目标不存在时返回 gorm.ErrRecordNotFound。
	// 标记已是目标值时为幂等成功。
	SetActive(userID int64, active bool) error
	UpdatePasswordHash(userID int64, hash string) error
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Upsert(user *model.User) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	if user.ID == 0 {
		return fmt.Errorf("user id is required")
	}
	// Save 按主键存在与否决定 INSERT 或 UPDATE，正好匹配"注册即更新资料"的语义。
	return r.db.Save(user).Error
}

func (r *userRepository) FindByID(userID int64) (*model.User, error) {
	var user model.User
	if err := r.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindAll(activeOnly bool) ([]model.User, error) {
	var users []model.User
	tx := r.db.Order("created_at DESC")
	if activeOnly {
		tx = tx.Where("is_active = ?", true)
	}
	if err := tx.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) SetActive(userID int64, active bool) error {
	tx := r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Update("is_active", active)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		// affected rows 只统计值变化的行，重复设置同一标记时这里是 0。
		var count int64
		if err := r.db.Model(&model.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *userRepository) UpdatePasswordHash(userID int64, hash string) error {
	tx := r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
