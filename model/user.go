package model

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type AccountRole string

const (
	AccountAdmin  AccountRole = "admin"
	AccountMember AccountRole = "member"
)

// User 表示用户模型
type User struct {
	ID        uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string      `gorm:"type:varchar(150);not null;unique" json:"username"`
	Email     string      `gorm:"type:varchar(255);not null;unique" json:"email"`
	Password  string      `gorm:"type:varchar(255);not null" json:"-"`
	FirstName string      `gorm:"type:varchar(30)" json:"first_name"`
	LastName  string      `gorm:"type:varchar(30)" json:"last_name"`
	Role      AccountRole `gorm:"type:varchar(16)" json:"role"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate 新用户默认为普通成员
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.Role == "" {
		u.Role = AccountMember
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if err := s.conn(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := s.conn(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user %q: %w", username, translateError(err))
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("user %d: %w", id, translateError(err))
	}
	return &user, nil
}
