package model

import "time"

// User 对应数据库中 users 表。
// ID 使用外部会话系统（IM 机器人）分配的用户标识，不自增；
// 同一个用户无论从机器人端还是管理后台进来，都是同一行记录。
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username     string    `gorm:"type:varchar(255);index" json:"username"`
	FirstName    string    `gorm:"type:varchar(255);not null" json:"firstName"`
	LastName     string    `gorm:"type:varchar(255)" json:"lastName"`
	Email        string    `gorm:"type:varchar(255)" json:"email"`
	Phone        string    `gorm:"type:varchar(64)" json:"phone"`
	PasswordHash string    `gorm:"type:varchar(255)" json:"-"` // 仅管理后台登录使用，机器人注册的用户为空
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (User) TableName() string {
	return "users"
}

// FullName 拼接用户显示名，LastName 可能为空。
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
