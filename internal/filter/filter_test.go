package filter

import (
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

func seedUsers(t *testing.T, db *gorm.DB) {
	t.Helper()
	users := []models.User{
		{Email: "alice@example.com", Name: "Alice", PasswordHash: "x"},
		{Email: "bob@example.com", Name: "Bob", PasswordHash: "x"},
		{Email: "carol@test.org", Name: "Carol", PasswordHash: "x"},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}
	require.NoError(t, db.Delete(&users[2]).Error)
}

func listUsers(t *testing.T, db *gorm.DB, p Params) []models.User {
	t.Helper()
	var out []models.User
	require.NoError(t, Users(db.Model(&models.User{}), p).Find(&out).Error)
	return out
}

func TestSearchTermLength(t *testing.T) {
	t.Parallel()
	db := initTestDB(t)
	seedUsers(t, db)

	// Single characters apply no predicate, multibyte ones included.
	require.Len(t, listUsers(t, db, Params{Search: "a"}), 2)
	require.Len(t, listUsers(t, db, Params{Search: " b "}), 2)
	require.Len(t, listUsers(t, db, Params{Search: "é"}), 2)

	got := listUsers(t, db, Params{Search: "al"})
	require.Len(t, got, 1)
	require.Equal(t, "Alice", got[0].Name)
}

func TestSearchMatchesEitherColumn(t *testing.T) {
	t.Parallel()
	db := initTestDB(t)
	seedUsers(t, db)

	// "example" only appears in emails.
	require.Len(t, listUsers(t, db, Params{Search: "EXAMPLE"}), 2)
}

func TestVisibility(t *testing.T) {
	t.Parallel()
	db := initTestDB(t)
	seedUsers(t, db)

	require.Len(t, listUsers(t, db, Params{}), 2)
	require.Len(t, listUsers(t, db, Params{WithInactive: true}), 3)

	trashed := listUsers(t, db, Params{OnlyInactive: true})
	require.Len(t, trashed, 1)
	require.Equal(t, "Carol", trashed[0].Name)

	// only_inactive wins when both flags are set.
	both := listUsers(t, db, Params{WithInactive: true, OnlyInactive: true})
	require.Len(t, both, 1)
	require.Equal(t, "Carol", both[0].Name)
}

func TestRoleFilter(t *testing.T) {
	t.Parallel()
	db := initTestDB(t)
	seedUsers(t, db)

	role := models.Role{Name: "editor", GuardName: "user"}
	require.NoError(t, db.Create(&role).Error)

	var alice models.User
	require.NoError(t, db.Where("name = ?", "Alice").First(&alice).Error)
	require.NoError(t, db.Create(&models.ActorRole{ActorGuard: "user", ActorID: alice.ID, RoleID: role.ID}).Error)

	byName := listUsers(t, db, Params{Role: "editor"})
	require.Len(t, byName, 1)
	require.Equal(t, "Alice", byName[0].Name)

	byID := listUsers(t, db, Params{Role: "1"})
	require.Len(t, byID, 1)

	// Unresolvable names add no predicate.
	require.Len(t, listUsers(t, db, Params{Role: "nonexistent"}), 2)
}

func TestDateRange(t *testing.T) {
	t.Parallel()
	db := initTestDB(t)

	old := models.User{Email: "old@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Model(&old).Update("created_at", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)).Error)

	recent := models.User{Email: "recent@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&recent).Error)
	require.NoError(t, db.Model(&recent).Update("created_at", time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)).Error)

	got := listUsers(t, db, Params{CreatedFrom: "2024-05-01"})
	require.Len(t, got, 1)
	require.Equal(t, "recent@example.com", got[0].Email)

	// The "to" bound is inclusive through end of day.
	got = listUsers(t, db, Params{CreatedTo: "2024-03-10"})
	require.Len(t, got, 1)
	require.Equal(t, "old@example.com", got[0].Email)

	// Malformed dates are ignored.
	require.Len(t, listUsers(t, db, Params{CreatedFrom: "yesterday"}), 2)
}

func TestSortAllowlist(t *testing.T) {
	t.Parallel()
	db := initTestDB(t)
	seedUsers(t, db)

	asc := listUsers(t, db, Params{SortBy: "name", SortDirection: "asc"})
	require.Equal(t, "Alice", asc[0].Name)
	require.Equal(t, "Bob", asc[1].Name)

	desc := listUsers(t, db, Params{SortBy: "name"})
	require.Equal(t, "Bob", desc[0].Name)

	// Unknown columns fall back to created_at instead of erroring.
	require.Len(t, listUsers(t, db, Params{SortBy: "password_hash; DROP TABLE users"}), 2)
}

func TestArtistRanges(t *testing.T) {
	t.Parallel()
	db := initTestDB(t)

	pop := func(v int) *int { return &v }
	followers := func(v int64) *int64 { return &v }
	owner := uint(42)

	artists := []models.Artist{
		{Name: "Nova", Popularity: pop(80), FollowersCount: followers(1_000_000), OwnerID: &owner},
		{Name: "Dust", Popularity: pop(35), FollowersCount: followers(5_000)},
	}
	for i := range artists {
		require.NoError(t, db.Create(&artists[i]).Error)
	}

	list := func(p Params) []models.Artist {
		var out []models.Artist
		require.NoError(t, Artists(db.Model(&models.Artist{}), p).Find(&out).Error)
		return out
	}

	got := list(Params{PopularityMin: "50"})
	require.Len(t, got, 1)
	require.Equal(t, "Nova", got[0].Name)

	got = list(Params{FollowersMax: "10000"})
	require.Len(t, got, 1)
	require.Equal(t, "Dust", got[0].Name)

	got = list(Params{OwnerID: "42"})
	require.Len(t, got, 1)
	require.Equal(t, "Nova", got[0].Name)

	// Garbage bounds are no-ops.
	require.Len(t, list(Params{PopularityMin: "lots"}), 2)
}
