package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusTranslated = "translated"
)

// Document is an uploaded translation source file. The bytes live in S3
// under ObjectKey; this row only carries the metadata.
type Document struct {
	ID          string         `gorm:"primaryKey;type:char(36)" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	CompanyID   *uint          `gorm:"index" json:"company_id,omitempty"`
	FileName    string         `gorm:"type:varchar(255);not null" json:"file_name"`
	ContentType string         `gorm:"type:varchar(100);not null" json:"content_type"`
	Size        int64          `gorm:"not null" json:"size"`
	Checksum    string         `gorm:"type:varchar(64);index" json:"checksum"`
	ObjectKey   string         `gorm:"type:varchar(512);not null" json:"-"`
	SourceLang  string         `gorm:"type:varchar(10)" json:"source_lang"`
	TargetLang  string         `gorm:"type:varchar(10)" json:"target_lang"`
	Status      string         `gorm:"type:varchar(20);not null;default:'uploaded'" json:"status"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
