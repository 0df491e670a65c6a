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

// AdminService mirrors UserService for the back-office guard. Admins
// never own artists, so force-delete has no ownership cleanup.
type AdminService struct {
	DB       *gorm.DB
	Bus      *Bus
	Notifier Notifier
	Media    *MediaManager
}

type CreateAdminInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

type UpdateAdminInput struct {
	Email    *string
	Name     *string
	Password *string
	Role     *string
}

func (s *AdminService) Get(ctx context.Context, id uint) (*models.Admin, error) {
	var admin models.Admin
	if err := s.DB.WithContext(ctx).First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &admin, nil
}

func (s *AdminService) List(ctx context.Context, p filter.Params) ([]models.Admin, error) {
	var admins []models.Admin
	q := filter.Admins(s.DB.WithContext(ctx).Model(&models.Admin{}), p)
	if err := q.Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}

func (s *AdminService) Create(ctx context.Context, act actor.Ref, in CreateAdminInput) (*models.Admin, error) {
	l := logging.FromContext(ctx).With("svc", "admins.create", "actor", act.String())

	pw, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("admin_create_failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	admin := models.Admin{
		Email:        normalizeEmail(in.Email),
		Name:         in.Name,
		PasswordHash: pw,
	}
	stampCreated(&admin.AuditStamps, act)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		if in.Role != "" {
			return syncActorRole(tx, actor.GuardAdmin, admin.ID, in.Role)
		}
		return nil
	})
	if err != nil {
		l.Error("admin_create_failed", "error", err)
		return nil, err
	}

	s.Bus.Publish(ctx, Event{Kind: EventCreated, Entity: EntityAdmins, EntityID: admin.ID, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("admin %d created", admin.ID))
	l.Info("admin_created", "admin_id", admin.ID)
	return &admin, nil
}

func (s *AdminService) Update(ctx context.Context, act actor.Ref, id uint, in UpdateAdminInput) (*models.Admin, error) {
	l := logging.FromContext(ctx).With("svc", "admins.update", "actor", act.String(), "admin_id", id)

	admin, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		admin.Email = normalizeEmail(*in.Email)
	}
	if in.Name != nil {
		admin.Name = *in.Name
	}
	if in.Password != nil && *in.Password != "" {
		pw, err := hash.HashPassword(*in.Password)
		if err != nil {
			l.Error("admin_update_failed", "reason", "cannot hash password", "error", err)
			return nil, err
		}
		admin.PasswordHash = pw
	}
	stampUpdated(&admin.AuditStamps, act)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(admin).Error; err != nil {
			return err
		}
		if in.Role != nil && *in.Role != "" {
			return syncActorRole(tx, actor.GuardAdmin, admin.ID, *in.Role)
		}
		return nil
	})
	if err != nil {
		l.Error("admin_update_failed", "error", err)
		return nil, err
	}

	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityAdmins, EntityID: admin.ID, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("admin %d updated", admin.ID))
	l.Info("admin_updated")
	return admin, nil
}

func (s *AdminService) SoftDelete(ctx context.Context, act actor.Ref, id uint) error {
	l := logging.FromContext(ctx).With("svc", "admins.delete", "actor", act.String(), "admin_id", id)

	admin, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stampDeleted(&admin.AuditStamps, act)
		if err := tx.Model(admin).Updates(map[string]any{
			"deleted_by_guard": admin.DeletedByGuard,
			"deleted_by_id":    admin.DeletedByID,
		}).Error; err != nil {
			return err
		}
		return tx.Delete(admin).Error
	})
	if err != nil {
		l.Error("admin_delete_failed", "error", err)
		return err
	}

	s.Bus.Publish(ctx, Event{Kind: EventDeleted, Entity: EntityAdmins, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("admin %d deleted", id))
	l.Info("admin_deleted")
	return nil
}

func (s *AdminService) Restore(ctx context.Context, act actor.Ref, id uint) (*models.Admin, error) {
	l := logging.FromContext(ctx).With("svc", "admins.restore", "actor", act.String(), "admin_id", id)

	var admin models.Admin
	err := s.DB.WithContext(ctx).Unscoped().
		Where("id = ? AND deleted_at IS NOT NULL", id).
		First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	actID := act.ID
	err = s.DB.WithContext(ctx).Unscoped().Model(&admin).Updates(map[string]any{
		"deleted_at":        nil,
		"deleted_by_guard":  "",
		"deleted_by_id":     nil,
		"restored_at":       now,
		"restored_by_guard": string(act.Guard),
		"restored_by_id":    actID,
	}).Error
	if err != nil {
		l.Error("admin_restore_failed", "error", err)
		return nil, err
	}

	admin.DeletedAt = gorm.DeletedAt{}
	admin.DeletedByGuard = ""
	admin.DeletedByID = nil
	admin.RestoredAt = &now
	admin.RestoredByGuard = string(act.Guard)
	admin.RestoredByID = &actID

	s.Bus.Publish(ctx, Event{Kind: EventRestored, Entity: EntityAdmins, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "success", fmt.Sprintf("admin %d restored", id))
	l.Info("admin_restored")
	return &admin, nil
}

func (s *AdminService) ForceDelete(ctx context.Context, act actor.Ref, id uint) error {
	l := logging.FromContext(ctx).With("svc", "admins.force_delete", "actor", act.String(), "admin_id", id)

	var admin models.Admin
	if err := s.DB.WithContext(ctx).Unscoped().First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if !admin.DeletedAt.Valid {
		l.Error("force_delete_active_record", "entity", EntityAdmins)
		return &ForceDeleteActiveRecordError{Entity: EntityAdmins, ID: id}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("actor_guard = ? AND actor_id = ?", string(actor.GuardAdmin), id).
			Delete(&models.ActorRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("actor_guard = ? AND actor_id = ?", string(actor.GuardAdmin), id).
			Delete(&models.ActorPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tokenable_guard = ? AND tokenable_id = ?", string(actor.GuardAdmin), id).
			Delete(&models.OAuthToken{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&admin).Error
	})
	if err != nil {
		l.Error("admin_force_delete_failed", "error", err)
		return err
	}

	s.Bus.Publish(ctx, Event{Kind: EventForceDeleted, Entity: EntityAdmins, EntityID: id, Actor: act})
	notify(s.Notifier, ctx, act, "warning", fmt.Sprintf("admin %d permanently deleted", id))
	l.Info("admin_force_deleted")
	return nil
}

func (s *AdminService) AddProfilePhoto(ctx context.Context, act actor.Ref, id uint, folder string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Media.AddProfilePhoto(ctx, OwnerAdmin, id, folder); err != nil {
		return err
	}
	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityAdmins, EntityID: id, Actor: act})
	return nil
}

func (s *AdminService) RemoveProfilePhoto(ctx context.Context, act actor.Ref, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Media.RemoveProfilePhoto(ctx, OwnerAdmin, id); err != nil {
		return err
	}
	s.Bus.Publish(ctx, Event{Kind: EventUpdated, Entity: EntityAdmins, EntityID: id, Actor: act})
	return nil
}

func (s *AdminService) SendPasswordResetLink(ctx context.Context, act actor.Ref, id uint) error {
	admin, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	notify(s.Notifier, ctx, actor.Ref{Guard: actor.GuardAdmin, ID: admin.ID}, "success", "password reset link sent")
	logging.FromContext(ctx).Info("password_reset_link_sent",
		"svc", "admins.password_reset", "actor", act.String(), "admin_id", admin.ID)
	return nil
}
