package models

import "time"

// MediaFile records locally stored media uploads for timed cleanup.
type MediaFile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	FilePath  string    `gorm:"size:1024;not null" json:"file_path"` // filesystem path
	URL       string    `gorm:"size:1024;not null" json:"url"`       // public URL like /static/uploads/...
	Kind      string    `gorm:"size:16" json:"kind"`                 // image or video
	ExpireAt  time.Time `gorm:"index" json:"expire_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
