package tempfile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stagehand/backline/internal/logging"
	"github.com/stagehand/backline/internal/models"
)

const DefaultTTL = 24 * time.Hour

// Service is the temp-upload staging area. Uploads are parked under a
// UUID folder and either consumed into a media collection or
// garbage-collected after expiry.
type Service struct {
	DB  *gorm.DB
	TTL time.Duration
}

func New(db *gorm.DB, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{DB: db, TTL: ttl}
}

// Register records an uploaded file and returns its staging row. The
// folder UUID is what clients later hand to photo-attach endpoints.
func (s *Service) Register(ctx context.Context, originalName, mimeType string, size int64) (*models.TemporaryFile, error) {
	tf := models.TemporaryFile{
		Folder:       uuid.NewString(),
		Filename:     uuid.NewString(),
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		ExpiresAt:    time.Now().UTC().Add(s.TTL),
	}
	if err := s.DB.WithContext(ctx).Create(&tf).Error; err != nil {
		return nil, err
	}
	return &tf, nil
}

// MoveTempToMedia consumes a staging folder into a permanent media
// attachment, replacing the (owner, collection) slot in place when one
// is already occupied. Returns false when nothing is staged under the
// folder, which the caller treats as "upload not found" rather than an
// error; in that case no existing attachment is touched.
func (s *Service) MoveTempToMedia(ctx context.Context, folder, collection, ownerType string, ownerID uint) (bool, error) {
	var tf models.TemporaryFile
	err := s.DB.WithContext(ctx).Where("folder = ?", folder).First(&tf).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attachment := models.MediaAttachment{
			OwnerType:    ownerType,
			OwnerID:      ownerID,
			Collection:   collection,
			FileName:     tf.Filename,
			OriginalName: tf.OriginalName,
			MimeType:     tf.MimeType,
			Size:         tf.Size,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}, {Name: "collection"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"file_name", "original_name", "mime_type", "size",
			}),
		}).Create(&attachment).Error; err != nil {
			return err
		}
		return tx.Where("folder = ?", folder).Delete(&models.TemporaryFile{}).Error
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpired garbage-collects staging rows past their expiry and
// returns the count removed. Idempotent and safe alongside live
// traffic: it only ever touches rows already past the threshold.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&models.TemporaryFile{})
	if res.Error != nil {
		return 0, res.Error
	}

	logging.FromContext(ctx).Info("temp_files_cleaned", "svc", "tempfile.cleanup", "count", res.RowsAffected)
	return res.RowsAffected, nil
}
