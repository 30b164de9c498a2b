package models

import (
	"golang.org/x/crypto/bcrypt"
)

// User roles. Students double as recognition identities: their username is
// the enrollment number that names their training image directory.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User represents an account in the system.
// It corresponds to the 'users' table.
type User struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string  `gorm:"uniqueIndex;not null" json:"username"` // enrollment number for students
	Name         string  `gorm:"not null" json:"name"`
	Email        *string `gorm:"" json:"email,omitempty"` // Nullable
	PasswordHash string  `gorm:"not null" json:"-"`
	Role         string  `gorm:"not null;check:role IN ('admin','teacher','student')" json:"role"`
	CreatedAt    int64   `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt    int64   `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (User) TableName() string {
	return "users"
}

// SetPassword hashes the given password and sets it on the user model.
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the given password matches the user's hashed password.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// IsStudent reports whether the user is an enrolled student.
func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}
