package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/filter"
	"github.com/stagehand/backline/internal/hash"
	"github.com/stagehand/backline/internal/logging"
	"github.com/stagehand/backline/internal/models"
)

type UserService struct {
	DB       *gorm.DB
	Bus      *Bus
	Notifier Notifier
	Media    *MediaManager
}

type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

type UpdateUserInput struct {
	Email    *string
	Name     *string
	Password *string
	Role     *string
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) List(ctx context.Context, p filter.Params) ([]models.User, error) {
	var users []models.User
	q := filter.Users(s.DB.WithContext(ctx).Model(&models.User{}), p)
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) Create(ctx context.Context, act actor.Ref, in CreateUserInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.create", "actor", act.String())

	pw, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("user_create_failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	user := models.User{
		Email:        normalizeEmail(in.Email),
		Name:         in.Name,
		PasswordHash: pw,
	}
	stampCreated(&user.AuditStamps, act)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if in.Role != "" {
			return syncActorRole(tx, actor.GuardUser, user.ID, in.Role)
		}
		return nil
	})
	if err != nil {
		l.Error("user_create_failed", "error", err)
		return nil, err
	}

	s.Bus.Publish(ctx, Event{Kind: EventCreated, Entity: EntityUsers, EntityID: user.ID, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("user %d created", user.ID))
	l.Info("user_created", "user_id", user.ID)
	return &user, nil
}

func (s *UserService) Update(ctx context.Context, act actor.Ref, id uint, in UpdateUserInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.update", "actor", act.String(), "user_id", id)

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		user.Email = normalizeEmail(*in.Email)
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	// A present-but-empty password is stripped from the update so an
	// existing hash is never nulled out by accident.
	if in.Password != nil && *in.Password != "" {
		pw, err := hash.HashPassword(*in.Password)
		if err != nil {
			l.Error("user_update_failed", "reason", "cannot hash password", "error", err)
			return nil, err
		}
		user.PasswordHash = pw
	}
	stampUpdated(&user.AuditStamps, act)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		if in.Role != nil && *in.Role != "" {
			return syncActorRole(tx, actor.GuardUser, user.ID, *in.Role)
		}
		return nil
	})
	if err != nil {
		l.Error("user_update_failed", "error", err)
		return nil, err
	}

	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityUsers, EntityID: user.ID, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("user %d updated", user.ID))
	l.Info("user_updated")
	return user, nil
}

func (s *UserService) SoftDelete(ctx context.Context, act actor.Ref, id uint) error {
	l := logging.FromContext(ctx).With("svc", "users.delete", "actor", act.String(), "user_id", id)

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stampDeleted(&user.AuditStamps, act)
		if err := tx.Model(user).Updates(map[string]any{
			"deleted_by_guard": user.DeletedByGuard,
			"deleted_by_id":    user.DeletedByID,
		}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		l.Error("user_delete_failed", "error", err)
		return err
	}

	s.Bus.Publish(ctx, Event{Kind: EventDeleted, Entity: EntityUsers, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("user %d deleted", id))
	l.Info("user_deleted")
	return nil
}

func (s *UserService) Restore(ctx context.Context, act actor.Ref, id uint) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.restore", "actor", act.String(), "user_id", id)

	var user models.User
	err := s.DB.WithContext(ctx).Unscoped().
		Where("id = ? AND deleted_at IS NOT NULL", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	actID := act.ID
	err = s.DB.WithContext(ctx).Unscoped().Model(&user).Updates(map[string]any{
		"deleted_at":        nil,
		"deleted_by_guard":  "",
		"deleted_by_id":     nil,
		"restored_at":       now,
		"restored_by_guard": string(act.Guard),
		"restored_by_id":    actID,
	}).Error
	if err != nil {
		l.Error("user_restore_failed", "error", err)
		return nil, err
	}

	user.DeletedAt = gorm.DeletedAt{}
	user.DeletedByGuard = ""
	user.DeletedByID = nil
	user.RestoredAt = &now
	user.RestoredByGuard = string(act.Guard)
	user.RestoredByID = &actID

	s.Bus.Publish(ctx, Event{Kind: EventRestored, Entity: EntityUsers, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("user %d restored", id))
	l.Info("user_restored")
	return &user, nil
}

func (s *UserService) ForceDelete(ctx context.Context, act actor.Ref, id uint) error {
	l := logging.FromContext(ctx).With("svc", "users.force_delete", "actor", act.String(), "user_id", id)

	var user models.User
	if err := s.DB.WithContext(ctx).Unscoped().First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if !user.DeletedAt.Valid {
		l.Error("force_delete_active_record", "entity", EntityUsers)
		return &ForceDeleteActiveRecordError{Entity: EntityUsers, ID: id}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Owned artists survive with a nulled owner.
		if err := tx.Model(&models.Artist{}).Where("owner_id = ?", id).
			Update("owner_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("actor_guard = ? AND actor_id = ?", string(actor.GuardUser), id).
			Delete(&models.ActorRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("actor_guard = ? AND actor_id = ?", string(actor.GuardUser), id).
			Delete(&models.ActorPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tokenable_guard = ? AND tokenable_id = ?", string(actor.GuardUser), id).
			Delete(&models.OAuthToken{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&user).Error
	})
	if err != nil {
		l.Error("user_force_delete_failed", "error", err)
		return err
	}

	s.Bus.Publish(ctx, Event{Kind: EventForceDeleted, Entity: EntityUsers, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "warning", fmt.Sprintf("user %d permanently deleted", id))
	l.Info("user_force_deleted")
	return nil
}

func (s *UserService) AddProfilePhoto(ctx context.Context, act actor.Ref, id uint, folder string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Media.AddProfilePhoto(ctx, OwnerUser, id, folder); err != nil {
		return err
	}
	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityUsers, EntityID: id, Actor: act})
	return nil
}

func (s *UserService) RemoveProfilePhoto(ctx context.Context, act actor.Ref, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Media.RemoveProfilePhoto(ctx, OwnerUser, id); err != nil {
		return err
	}
	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityUsers, EntityID: id, Actor: act})
	return nil
}

// SendPasswordResetLink only dispatches the notification; actual mail
// delivery is the notifier's problem.
func (s *UserService) SendPasswordResetLink(ctx context.Context, act actor.Ref, id uint) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	notify(s.Notifier, ctx, actor.Ref{Guard: actor.GuardUser, ID: user.ID}, "success", "password reset link sent")
	logging.FromContext(ctx).Info("password_reset_link_sent",
		"svc", "users.password_reset", "actor", act.String(), "user_id", user.ID)
	return nil
}
