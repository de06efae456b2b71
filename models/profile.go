package models

import "time"

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// Profile is a signed-in user's identity and role.
type Profile struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	Email       string    `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Password    string    `json:"-" gorm:"size:255;not null"`
	Role        string    `json:"role" gorm:"size:50;not null;default:'teacher'"`
	DisplayName string    `json:"display_name" gorm:"size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }
