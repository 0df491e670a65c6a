package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/models"
)

func principalWith(ref actor.Ref, perms ...string) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Principal{Ref: ref, Permissions: set}
}

func TestAuthorizeUser(t *testing.T) {
	t.Parallel()

	self := &models.User{ID: 7}
	other := &models.User{ID: 8}
	me := actor.Ref{Guard: actor.GuardUser, ID: 7}

	tests := []struct {
		name      string
		principal Principal
		action    Action
		target    *models.User
		wantErr   error
	}{
		{"view any denied without permission", principalWith(me), ActionViewAny, nil, ErrForbidden},
		{"view any granted with permission", principalWith(me, "users.viewAny"), ActionViewAny, nil, nil},
		{"view self without permission", principalWith(me), ActionView, self, nil},
		{"view other denied", principalWith(me), ActionView, other, ErrForbidden},
		{"view other with permission", principalWith(me, "users.view"), ActionView, other, nil},
		{"update self without permission", principalWith(me), ActionUpdate, self, nil},
		{"update other denied", principalWith(me), ActionUpdate, other, ErrForbidden},
		{"delete self always forbidden", principalWith(me, "users.delete"), ActionDelete, self, ErrForbidden},
		{"delete other with permission", principalWith(me, "users.delete"), ActionDelete, other, nil},
		{"restore requires permission even for self", principalWith(me), ActionRestore, self, ErrForbidden},
		{"force delete requires permission", principalWith(me), ActionForceDelete, other, ErrForbidden},
		{"password reset for self", principalWith(me), ActionSendPasswordResetLink, self, nil},
		{"password reset for other uses update permission", principalWith(me, "users.update"), ActionSendPasswordResetLink, other, nil},
		{"password reset for other denied", principalWith(me), ActionSendPasswordResetLink, other, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := AuthorizeUser(tt.principal, tt.action, tt.target)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAuthorizeAdminSelfDelete(t *testing.T) {
	t.Parallel()

	me := actor.Ref{Guard: actor.GuardAdmin, ID: 3}
	p := principalWith(me, "admins.delete", "admins.forceDelete")

	require.ErrorIs(t, AuthorizeAdmin(p, ActionDelete, &models.Admin{ID: 3}), ErrForbidden)
	require.NoError(t, AuthorizeAdmin(p, ActionDelete, &models.Admin{ID: 4}))
}

func TestAuthorizeAdminGuardMismatch(t *testing.T) {
	t.Parallel()

	// A user with the same numeric ID as an admin target is not "self".
	me := actor.Ref{Guard: actor.GuardUser, ID: 3}
	p := principalWith(me)

	require.ErrorIs(t, AuthorizeAdmin(p, ActionView, &models.Admin{ID: 3}), ErrForbidden)
}

func TestAuthorizeArtist(t *testing.T) {
	t.Parallel()

	ownerID := uint(5)
	owned := &models.Artist{ID: 1, OwnerID: &ownerID}
	unowned := &models.Artist{ID: 2}
	owner := actor.Ref{Guard: actor.GuardUser, ID: 5}
	admin := actor.Ref{Guard: actor.GuardAdmin, ID: 5}

	tests := []struct {
		name      string
		principal Principal
		action    Action
		target    *models.Artist
		wantErr   error
	}{
		{"owner views own artist", principalWith(owner), ActionView, owned, nil},
		{"owner updates own artist", principalWith(owner), ActionUpdate, owned, nil},
		{"owner deletes own artist", principalWith(owner), ActionDelete, owned, nil},
		{"owner restores own artist", principalWith(owner), ActionRestore, owned, nil},
		{"owner cannot force delete own artist", principalWith(owner), ActionForceDelete, owned, ErrForbidden},
		{"admin guard does not count as owner", principalWith(admin), ActionDelete, owned, ErrForbidden},
		{"non-owner denied without permission", principalWith(owner), ActionDelete, unowned, ErrForbidden},
		{"non-owner with permission", principalWith(owner, "artists.delete"), ActionDelete, unowned, nil},
		{"create requires permission", principalWith(owner), ActionCreate, nil, ErrForbidden},
		{"view any with permission", principalWith(owner, "artists.viewAny"), ActionViewAny, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := AuthorizeArtist(tt.principal, tt.action, tt.target)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
