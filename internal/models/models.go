package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// AuditStamps records which actor performed each lifecycle transition.
// The acting actor is polymorphic (user or admin), so every stamp is a
// (guard, id) pair. Stamps are written for every mutation regardless of
// whether the acting guard matches the entity's own guard.
type AuditStamps struct {
	CreatedByGuard  string     `gorm:"size:16"          json:"created_by_guard,omitempty"`
	CreatedByID     *uint      `json:"created_by,omitempty"`
	UpdatedByGuard  string     `gorm:"size:16"          json:"updated_by_guard,omitempty"`
	UpdatedByID     *uint      `json:"updated_by,omitempty"`
	DeletedByGuard  string     `gorm:"size:16"          json:"deleted_by_guard,omitempty"`
	DeletedByID     *uint      `json:"deleted_by,omitempty"`
	RestoredAt      *time.Time `json:"restored_at,omitempty"`
	RestoredByGuard string     `gorm:"size:16"          json:"restored_by_guard,omitempty"`
	RestoredByID    *uint      `json:"restored_by,omitempty"`
}

type User struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string         `gorm:"uniqueIndex;not null"     json:"email"`
	Name            string         `json:"name"`
	PasswordHash    string         `gorm:"not null"                 json:"-"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index"                    json:"deleted_at,omitempty"`
	AuditStamps
}

type Admin struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string         `gorm:"uniqueIndex;not null"     json:"email"`
	Name            string         `json:"name"`
	PasswordHash    string         `gorm:"not null"                 json:"-"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index"                    json:"deleted_at,omitempty"`
	AuditStamps
}

type Artist struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID        *uint          `gorm:"index"                    json:"owner_id,omitempty"`
	SpotifyID      *string        `gorm:"uniqueIndex"              json:"spotify_id,omitempty"`
	Name           string         `gorm:"not null"                 json:"name"`
	Popularity     *int           `json:"popularity,omitempty"`
	FollowersCount *int64         `json:"followers_count,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index"                    json:"deleted_at,omitempty"`
	AuditStamps
}

// Role belongs to exactly one guard; (name, guard_name) is its identity.
type Role struct {
	ID          uint         `gorm:"primaryKey;autoIncrement"                      json:"id"`
	Name        string       `gorm:"uniqueIndex:idx_roles_name_guard;not null"     json:"name"`
	GuardName   string       `gorm:"uniqueIndex:idx_roles_name_guard;size:16"      json:"guard_name"`
	Permissions []Permission `gorm:"many2many:role_permissions"                    json:"permissions,omitempty"`
}

// Permission names are dot-namespaced, e.g. "users.delete".
type Permission struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"                      json:"id"`
	Name      string `gorm:"uniqueIndex:idx_perms_name_guard;not null"     json:"name"`
	GuardName string `gorm:"uniqueIndex:idx_perms_name_guard;size:16"      json:"guard_name"`
}

// ActorRole joins a polymorphic actor to a role.
type ActorRole struct {
	ActorGuard string `gorm:"primaryKey;size:16" json:"actor_guard"`
	ActorID    uint   `gorm:"primaryKey"         json:"actor_id"`
	RoleID     uint   `gorm:"primaryKey"         json:"role_id"`
}

// ActorPermission grants a permission to an actor directly, outside any role.
type ActorPermission struct {
	ActorGuard   string `gorm:"primaryKey;size:16" json:"actor_guard"`
	ActorID      uint   `gorm:"primaryKey"         json:"actor_id"`
	PermissionID uint   `gorm:"primaryKey"         json:"permission_id"`
}

// OAuthToken stores third-party credentials for a polymorphic owner.
// At most one row may exist per (tokenable, provider); upserts replace
// in place. Access and refresh tokens are encrypted at rest.
type OAuthToken struct {
	ID             uint       `gorm:"primaryKey;autoIncrement"                                  json:"id"`
	TokenableGuard string     `gorm:"size:16;uniqueIndex:idx_tokens_tokenable_provider"         json:"tokenable_guard"`
	TokenableID    uint       `gorm:"uniqueIndex:idx_tokens_tokenable_provider"                 json:"tokenable_id"`
	Provider       string     `gorm:"size:32;uniqueIndex:idx_tokens_tokenable_provider"         json:"provider"`
	ProviderUserID string     `json:"provider_user_id"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Scopes         string     `gorm:"type:text" json:"-"`
	ProviderData   string     `gorm:"type:text" json:"-"`
	IsActive       bool       `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SetScopes serializes the ordered scope list.
func (t *OAuthToken) SetScopes(scopes []string) {
	if len(scopes) == 0 {
		t.Scopes = ""
		return
	}
	b, _ := json.Marshal(scopes)
	t.Scopes = string(b)
}

func (t *OAuthToken) ScopeList() []string {
	if t.Scopes == "" {
		return nil
	}
	var scopes []string
	if err := json.Unmarshal([]byte(t.Scopes), &scopes); err != nil {
		return nil
	}
	return scopes
}

// MediaAttachment is a single-slot media item (profile photo) owned
// polymorphically by a user, admin or artist. The unique index makes
// the slot a singleton per (owner, collection).
type MediaAttachment struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"                              json:"id"`
	OwnerType    string    `gorm:"size:16;uniqueIndex:idx_media_owner_collection"        json:"owner_type"`
	OwnerID      uint      `gorm:"uniqueIndex:idx_media_owner_collection"                json:"owner_id"`
	Collection   string    `gorm:"size:32;uniqueIndex:idx_media_owner_collection"        json:"collection"`
	FileName     string    `json:"file_name"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

// TemporaryFile is an uploaded file parked in staging until it is moved
// into a media collection or garbage-collected after expiry.
type TemporaryFile struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Folder       string    `gorm:"size:36;index;not null"   json:"folder"`
	Filename     string    `gorm:"not null"                 json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	ExpiresAt    time.Time `gorm:"index"                    json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Admin{}, &Artist{},
		&Role{}, &Permission{}, &ActorRole{}, &ActorPermission{},
		&OAuthToken{}, &MediaAttachment{}, &TemporaryFile{},
	}
}
