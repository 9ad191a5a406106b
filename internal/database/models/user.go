package models

import "time"

type User struct {
	Base
	Email           string     `gorm:"uniqueIndex:idx_users_email;not null" json:"email"`
	Name            string     `gorm:"not null;default:''" json:"name"`
	IsEmailVerified bool       `gorm:"not null;default:false" json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}

// Clone returns a deep copy so callers never share the LastLogin pointer.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}
