package utils

import (
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/wecare-app/wecare-backend/config"
	"github.com/wecare-app/wecare-backend/models"
)

// StartMediaCleaner launches a background goroutine that periodically
// deletes expired uploaded media recorded in the database. It is
// best-effort and logs failures.
func StartMediaCleaner(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			if db == nil {
				continue
			}
			if !config.Get().UploadsSelfDestructEnabled {
				continue
			}
			var items []models.MediaFile
			if err := db.Where("expire_at <= ?", time.Now()).Limit(100).Find(&items).Error; err != nil {
				Sugar.Warnf("media cleaner query failed: %v", err)
				continue
			}
			for _, it := range items {
				if it.FilePath != "" {
					_ = os.Remove(it.FilePath)
				}
				// Remove row regardless of file deletion outcome
				if err := db.Delete(&models.MediaFile{}, it.ID).Error; err != nil {
					Sugar.Warnf("media cleaner delete row failed: %v", err)
				}
			}
		}
	}()
}
