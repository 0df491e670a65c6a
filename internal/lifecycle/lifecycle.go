package lifecycle

import (
	"context"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/models"
)

const (
	EntityUsers   = "users"
	EntityAdmins  = "admins"
	EntityArtists = "artists"
)

// Notifier delivers user-facing success/warning messages. Delivery is
// fire-and-forget: implementations log their own failures and never
// surface them to the mutating operation.
type Notifier interface {
	Notify(ctx context.Context, to actor.Ref, level, message string)
}

func notify(n Notifier, ctx context.Context, to actor.Ref, level, message string) {
	if n == nil {
		return
	}
	n.Notify(ctx, to, level, message)
}

func stampCreated(s *models.AuditStamps, act actor.Ref) {
	id := act.ID
	s.CreatedByGuard = string(act.Guard)
	s.CreatedByID = &id
	s.UpdatedByGuard = string(act.Guard)
	s.UpdatedByID = &id
}

func stampUpdated(s *models.AuditStamps, act actor.Ref) {
	id := act.ID
	s.UpdatedByGuard = string(act.Guard)
	s.UpdatedByID = &id
}

func stampDeleted(s *models.AuditStamps, act actor.Ref) {
	id := act.ID
	s.DeletedByGuard = string(act.Guard)
	s.DeletedByID = &id
}

// resolveRole accepts a role ID or a role name; numeric strings are
// treated as IDs directly. Roles are scoped to one guard.
func resolveRole(tx *gorm.DB, guard actor.Guard, ref string) (*models.Role, error) {
	ref = strings.TrimSpace(ref)
	var role models.Role
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		if err := tx.Where("id = ? AND guard_name = ?", uint(id), string(guard)).First(&role).Error; err != nil {
			return nil, ErrRoleNotFound
		}
		return &role, nil
	}
	if err := tx.Where("name = ? AND guard_name = ?", ref, string(guard)).First(&role).Error; err != nil {
		return nil, ErrRoleNotFound
	}
	return &role, nil
}

// syncActorRole replaces the actor's role set with the single resolved
// role. Sync, not add: any previously held roles are removed.
func syncActorRole(tx *gorm.DB, guard actor.Guard, actorID uint, roleRef string) error {
	role, err := resolveRole(tx, guard, roleRef)
	if err != nil {
		return err
	}
	if err := tx.Where("actor_guard = ? AND actor_id = ?", string(guard), actorID).
		Delete(&models.ActorRole{}).Error; err != nil {
		return err
	}
	return tx.Create(&models.ActorRole{
		ActorGuard: string(guard),
		ActorID:    actorID,
		RoleID:     role.ID,
	}).Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
