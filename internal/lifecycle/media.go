package lifecycle

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/models"
)

const CollectionProfilePhoto = "profile_photo"

// Media owner discriminators. Users and admins reuse their guard names;
// artists are not actors but can still own a photo.
const (
	OwnerUser   = "user"
	OwnerAdmin  = "admin"
	OwnerArtist = "artist"
)

var ErrTempUploadNotFound = errors.New("temporary upload not found")

// TempMover is the temp-upload collaborator contract: it moves a staged
// upload folder into a permanent media collection and reports whether
// anything was actually moved. The core never touches files itself.
type TempMover interface {
	MoveTempToMedia(ctx context.Context, folder, collection, ownerType string, ownerID uint) (bool, error)
}

// MediaManager owns the single-slot profile photo attachment shared by
// users, admins and artists.
type MediaManager struct {
	DB    *gorm.DB
	Mover TempMover
}

// AddProfilePhoto stores a staged upload as the owner's profile photo.
// The slot is a singleton, not a gallery: the move replaces any existing
// attachment in place. When nothing is staged under the folder the
// current photo is left untouched.
func (m *MediaManager) AddProfilePhoto(ctx context.Context, ownerType string, ownerID uint, folder string) error {
	moved, err := m.Mover.MoveTempToMedia(ctx, folder, CollectionProfilePhoto, ownerType, ownerID)
	if err != nil {
		return err
	}
	if !moved {
		return ErrTempUploadNotFound
	}
	return nil
}

// RemoveProfilePhoto detaches the owner's profile photo. Removing a
// photo that does not exist yields ErrNoPhoto every time, never a
// generic error.
func (m *MediaManager) RemoveProfilePhoto(ctx context.Context, ownerType string, ownerID uint) error {
	res := m.DB.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND collection = ?", ownerType, ownerID, CollectionProfilePhoto).
		Delete(&models.MediaAttachment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoPhoto
	}
	return nil
}
