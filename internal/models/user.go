package models

import (
	"strings"
	"time"
)

type User struct {
	ID           string    `bson:"_id" json:"_id"`
	Name         string    `bson:"name" json:"name" validate:"required,max=100"`
	Email        string    `bson:"email" json:"email" validate:"required,email"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
