package policy

import (
	"context"

	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/models"
)

// Resolver loads an actor's effective permission set: everything granted
// through its roles plus any direct grants, scoped to the actor's guard.
type Resolver struct {
	DB *gorm.DB
}

func (r *Resolver) Resolve(ctx context.Context, ref actor.Ref) (Principal, error) {
	var roleIDs []uint
	if err := r.DB.WithContext(ctx).
		Model(&models.ActorRole{}).
		Where("actor_guard = ? AND actor_id = ?", string(ref.Guard), ref.ID).
		Pluck("role_id", &roleIDs).Error; err != nil {
		return Principal{}, err
	}

	var perms []models.Permission
	if len(roleIDs) > 0 {
		if err := r.DB.WithContext(ctx).
			Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
			Where("role_permissions.role_id IN ? AND permissions.guard_name = ?", roleIDs, string(ref.Guard)).
			Find(&perms).Error; err != nil {
			return Principal{}, err
		}
	}

	var direct []models.Permission
	if err := r.DB.WithContext(ctx).
		Joins("JOIN actor_permissions ON actor_permissions.permission_id = permissions.id").
		Where("actor_permissions.actor_guard = ? AND actor_permissions.actor_id = ? AND permissions.guard_name = ?",
			string(ref.Guard), ref.ID, string(ref.Guard)).
		Find(&direct).Error; err != nil {
		return Principal{}, err
	}

	return NewPrincipal(ref, append(perms, direct...)), nil
}
