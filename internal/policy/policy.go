package policy

import (
	"errors"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/models"
)

// ErrForbidden is the distinguishable denial outcome. It maps to 403 at
// the HTTP boundary and is never conflated with not-found.
var ErrForbidden = errors.New("forbidden")

type Action string

const (
	ActionViewAny               Action = "viewAny"
	ActionView                  Action = "view"
	ActionCreate                Action = "create"
	ActionUpdate                Action = "update"
	ActionDelete                Action = "delete"
	ActionRestore               Action = "restore"
	ActionForceDelete           Action = "forceDelete"
	ActionSendPasswordResetLink Action = "sendPasswordResetLink"
)

// Principal is an actor with its resolved permission set preloaded.
type Principal struct {
	Ref         actor.Ref
	Permissions map[string]struct{}
}

func NewPrincipal(ref actor.Ref, perms []models.Permission) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p.Name] = struct{}{}
	}
	return Principal{Ref: ref, Permissions: set}
}

// Can reports whether the principal holds the permission named key.
func (p Principal) Can(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

func (p Principal) isSelf(guard actor.Guard, id uint) bool {
	return p.Ref.Guard == guard && p.Ref.ID == id
}

// AuthorizeUser evaluates action against a User target. target may be
// nil for class-level actions (viewAny, create).
func AuthorizeUser(p Principal, action Action, target *models.User) error {
	self := target != nil && p.isSelf(actor.GuardUser, target.ID)
	return authorizeActorEntity(p, "users", action, self)
}

// AuthorizeAdmin evaluates action against an Admin target.
func AuthorizeAdmin(p Principal, action Action, target *models.Admin) error {
	self := target != nil && p.isSelf(actor.GuardAdmin, target.ID)
	return authorizeActorEntity(p, "admins", action, self)
}

// Ownership exceptions differ per action: self always grants view and
// update, never delete. An actor may not soft-delete its own record no
// matter which permissions it holds.
func authorizeActorEntity(p Principal, entity string, action Action, self bool) error {
	switch action {
	case ActionViewAny, ActionCreate, ActionRestore, ActionForceDelete:
		return requirePermission(p, entity, action)
	case ActionView, ActionUpdate:
		if self {
			return nil
		}
		return requirePermission(p, entity, action)
	case ActionDelete:
		if self {
			return ErrForbidden
		}
		return requirePermission(p, entity, action)
	case ActionSendPasswordResetLink:
		if self {
			return nil
		}
		return requirePermission(p, entity, ActionUpdate)
	default:
		return ErrForbidden
	}
}

// AuthorizeArtist evaluates action against an Artist target. Unlike
// actor records, an artist's owner may delete and restore it, but
// force-delete always requires the permission.
func AuthorizeArtist(p Principal, action Action, target *models.Artist) error {
	owner := target != nil && target.OwnerID != nil && p.isSelf(actor.GuardUser, *target.OwnerID)

	switch action {
	case ActionViewAny, ActionCreate, ActionForceDelete:
		return requirePermission(p, "artists", action)
	case ActionView, ActionUpdate, ActionDelete, ActionRestore:
		if owner {
			return nil
		}
		return requirePermission(p, "artists", action)
	default:
		return ErrForbidden
	}
}

func requirePermission(p Principal, entity string, action Action) error {
	if p.Can(entity + "." + string(action)) {
		return nil
	}
	return ErrForbidden
}
