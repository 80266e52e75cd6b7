package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleOwner  UserRole = "owner"
	UserRoleSeeker UserRole = "seeker"
)

type User struct {
	gorm.Model          // This embeds ID, CreatedAt, UpdatedAt, and DeletedAt
	Name         string   `json:"name" gorm:"column:name;not null"`
	Email        string   `json:"email" gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string   `json:"-" gorm:"column:password_hash;not null"`
	Role         UserRole `json:"role" gorm:"column:role;not null"`
	FCMToken     string   `json:"-" gorm:"column:fcm_token"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

func (u *User) IsOwner() bool {
	return u.Role == UserRoleOwner
}
