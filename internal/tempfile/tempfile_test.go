package tempfile

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func TestRegisterAndMove(t *testing.T) {
	t.Parallel()
	svc := New(initTestDB(t), time.Hour)
	ctx := context.Background()

	tf, err := svc.Register(ctx, "avatar.png", "image/png", 1024)
	require.NoError(t, err)
	require.NotEmpty(t, tf.Folder)
	require.NotEqual(t, "avatar.png", tf.Filename)
	require.True(t, tf.ExpiresAt.After(time.Now()))

	moved, err := svc.MoveTempToMedia(ctx, tf.Folder, "profile_photo", "user", 7)
	require.NoError(t, err)
	require.True(t, moved)

	var attachment models.MediaAttachment
	require.NoError(t, svc.DB.First(&attachment).Error)
	require.Equal(t, "user", attachment.OwnerType)
	require.EqualValues(t, 7, attachment.OwnerID)
	require.Equal(t, "avatar.png", attachment.OriginalName)

	// The staging row is consumed.
	var count int64
	require.NoError(t, svc.DB.Model(&models.TemporaryFile{}).Count(&count).Error)
	require.Zero(t, count)

	// A second move of the same folder finds nothing.
	moved, err = svc.MoveTempToMedia(ctx, tf.Folder, "profile_photo", "user", 7)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestMoveReplacesOccupiedSlot(t *testing.T) {
	t.Parallel()
	svc := New(initTestDB(t), time.Hour)
	ctx := context.Background()

	first, err := svc.Register(ctx, "old.png", "image/png", 1)
	require.NoError(t, err)
	second, err := svc.Register(ctx, "new.png", "image/png", 2)
	require.NoError(t, err)

	moved, err := svc.MoveTempToMedia(ctx, first.Folder, "profile_photo", "user", 7)
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = svc.MoveTempToMedia(ctx, second.Folder, "profile_photo", "user", 7)
	require.NoError(t, err)
	require.True(t, moved)

	// Still a singleton slot, now holding the newer upload.
	var attachments []models.MediaAttachment
	require.NoError(t, svc.DB.Find(&attachments).Error)
	require.Len(t, attachments, 1)
	require.Equal(t, "new.png", attachments[0].OriginalName)
	require.EqualValues(t, 2, attachments[0].Size)
}

func TestCleanupExpired(t *testing.T) {
	t.Parallel()
	svc := New(initTestDB(t), time.Hour)
	ctx := context.Background()

	fresh, err := svc.Register(ctx, "keep.png", "image/png", 1)
	require.NoError(t, err)

	stale, err := svc.Register(ctx, "drop.png", "image/png", 1)
	require.NoError(t, err)
	require.NoError(t, svc.DB.Model(stale).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	count, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	var remaining []models.TemporaryFile
	require.NoError(t, svc.DB.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, fresh.Folder, remaining[0].Folder)
}
