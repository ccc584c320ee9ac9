package models

import "gorm.io/gorm"

// ArtifactRecord is one row of the append-only game artifact log.
// Rows are only ever inserted; replaying them in ID order with the last row per
// Name winning reproduces the current artifact index.
type ArtifactRecord struct {
	gorm.Model
	Name        string `gorm:"size:128;index;not null"`
	Publisher   string `gorm:"size:64;not null"`
	Description string
	// Path is the content file relative to the artifact directory.
	Path string `gorm:"size:255;not null"`
	Size int64
}
