package models

import "gorm.io/gorm"

// Account is a registered lobby identity. Accounts are never deleted by logout.
type Account struct {
	gorm.Model
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
}
