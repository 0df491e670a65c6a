package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/filter"
	"github.com/stagehand/backline/internal/logging"
	"github.com/stagehand/backline/internal/models"
)

type ArtistService struct {
	DB       *gorm.DB
	Bus      *Bus
	Notifier Notifier
	Media    *MediaManager
}

type CreateArtistInput struct {
	OwnerID        *uint
	SpotifyID      *string
	Name           string
	Popularity     *int
	FollowersCount *int64
}

type UpdateArtistInput struct {
	OwnerID        *uint
	SpotifyID      *string
	Name           *string
	Popularity     *int
	FollowersCount *int64
}

func (s *ArtistService) Get(ctx context.Context, id uint) (*models.Artist, error) {
	var artist models.Artist
	if err := s.DB.WithContext(ctx).First(&artist, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &artist, nil
}

// GetAny looks the artist up regardless of soft-delete state. Restore
// authorization needs the trashed record's owner.
func (s *ArtistService) GetAny(ctx context.Context, id uint) (*models.Artist, error) {
	var artist models.Artist
	if err := s.DB.WithContext(ctx).Unscoped().First(&artist, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &artist, nil
}

func (s *ArtistService) List(ctx context.Context, p filter.Params) ([]models.Artist, error) {
	var artists []models.Artist
	q := filter.Artists(s.DB.WithContext(ctx).Model(&models.Artist{}), p)
	if err := q.Find(&artists).Error; err != nil {
		return nil, err
	}
	return artists, nil
}

// Create persists a new artist. Uniqueness of spotify_id is enforced by
// the storage layer; concurrent creates racing on the same key resolve
// there, not here.
func (s *ArtistService) Create(ctx context.Context, act actor.Ref, in CreateArtistInput) (*models.Artist, error) {
	l := logging.FromContext(ctx).With("svc", "artists.create", "actor", act.String())

	artist := models.Artist{
		OwnerID:        in.OwnerID,
		SpotifyID:      in.SpotifyID,
		Name:           in.Name,
		Popularity:     in.Popularity,
		FollowersCount: in.FollowersCount,
	}
	stampCreated(&artist.AuditStamps, act)

	if err := s.DB.WithContext(ctx).Create(&artist).Error; err != nil {
		l.Error("artist_create_failed", "error", err)
		return nil, err
	}

	s.Bus.Publish(ctx, Event{Kind: EventCreated, Entity: EntityArtists, EntityID: artist.ID, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("artist %q created", artist.Name))
	l.Info("artist_created", "artist_id", artist.ID)
	return &artist, nil
}

func (s *ArtistService) Update(ctx context.Context, act actor.Ref, id uint, in UpdateArtistInput) (*models.Artist, error) {
	l := logging.FromContext(ctx).With("svc", "artists.update", "actor", act.String(), "artist_id", id)

	artist, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.OwnerID != nil {
		artist.OwnerID = in.OwnerID
	}
	if in.SpotifyID != nil {
		artist.SpotifyID = in.SpotifyID
	}
	if in.Name != nil {
		artist.Name = *in.Name
	}
	if in.Popularity != nil {
		artist.Popularity = in.Popularity
	}
	if in.FollowersCount != nil {
		artist.FollowersCount = in.FollowersCount
	}
	stampUpdated(&artist.AuditStamps, act)

	if err := s.DB.WithContext(ctx).Save(artist).Error; err != nil {
		l.Error("artist_update_failed", "error", err)
		return nil, err
	}

	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityArtists, EntityID: artist.ID, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("artist %d updated", artist.ID))
	l.Info("artist_updated")
	return artist, nil
}

func (s *ArtistService) SoftDelete(ctx context.Context, act actor.Ref, id uint) error {
	l := logging.FromContext(ctx).With("svc", "artists.delete", "actor", act.String(), "artist_id", id)

	artist, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stampDeleted(&artist.AuditStamps, act)
		if err := tx.Model(artist).Updates(map[string]any{
			"deleted_by_guard": artist.DeletedByGuard,
			"deleted_by_id":    artist.DeletedByID,
		}).Error; err != nil {
			return err
		}
		return tx.Delete(artist).Error
	})
	if err != nil {
		l.Error("artist_delete_failed", "error", err)
		return err
	}

	s.Bus.Publish(ctx, Event{Kind: EventDeleted, Entity: EntityArtists, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("artist %d deleted", id))
	l.Info("artist_deleted")
	return nil
}

func (s *ArtistService) Restore(ctx context.Context, act actor.Ref, id uint) (*models.Artist, error) {
	l := logging.FromContext(ctx).With("svc", "artists.restore", "actor", act.String(), "artist_id", id)

	var artist models.Artist
	err := s.DB.WithContext(ctx).Unscoped().
		Where("id = ? AND deleted_at IS NOT NULL", id).
		First(&artist).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	actID := act.ID
	err = s.DB.WithContext(ctx).Unscoped().Model(&artist).Updates(map[string]any{
		"deleted_at":        nil,
		"deleted_by_guard":  "",
		"deleted_by_id":     nil,
		"restored_at":       now,
		"restored_by_guard": string(act.Guard),
		"restored_by_id":    actID,
	}).Error
	if err != nil {
		l.Error("artist_restore_failed", "error", err)
		return nil, err
	}

	artist.DeletedAt = gorm.DeletedAt{}
	artist.DeletedByGuard = ""
	artist.DeletedByID = nil
	artist.RestoredAt = &now
	artist.RestoredByGuard = string(act.Guard)
	artist.RestoredByID = &actID

	s.Bus.Publish(ctx, Event{Kind: EventRestored, Entity: EntityArtists, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("artist %d restored", id))
	l.Info("artist_restored")
	return &artist, nil
}

func (s *ArtistService) ForceDelete(ctx context.Context, act actor.Ref, id uint) error {
	l := logging.FromContext(ctx).With("svc", "artists.force_delete", "actor", act.String(), "artist_id", id)

	var artist models.Artist
	if err := s.DB.WithContext(ctx).Unscoped().First(&artist, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if !artist.DeletedAt.Valid {
		l.Error("force_delete_active_record", "entity", EntityArtists)
		return &ForceDeleteActiveRecordError{Entity: EntityArtists, ID: id}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_type = ? AND owner_id = ?", OwnerArtist, id).
			Delete(&models.MediaAttachment{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&artist).Error
	})
	if err != nil {
		l.Error("artist_force_delete_failed", "error", err)
		return err
	}

	s.Bus.Publish(ctx, Event{Kind: EventForceDeleted, Entity: EntityArtists, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "warning", fmt.Sprintf("artist %d permanently deleted", id))
	l.Info("artist_force_deleted")
	return nil
}

func (s *ArtistService) AddProfilePhoto(ctx context.Context, act actor.Ref, id uint, folder string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Media.AddProfilePhoto(ctx, OwnerArtist, id, folder); err != nil {
		return err
	}
	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityArtists, EntityID: id, Actor: act})
	return nil
}

func (s *ArtistService) RemoveProfilePhoto(ctx context.Context, act actor.Ref, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Media.RemoveProfilePhoto(ctx, OwnerArtist, id); err != nil {
		return err
	}
	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityArtists, EntityID: id, Actor: act})
	return nil
}
