package filter

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/models"
)

// Params carries untrusted list-filter input. Every field is optional;
// a step whose input is absent or malformed is a no-op, so the worst
// case degrades to "return everything, default sort" rather than an
// error.
type Params struct {
	Search string

	OwnerID       string
	Role          string // role ID or role name
	PopularityMin string
	PopularityMax string
	FollowersMin  string
	FollowersMax  string

	CreatedFrom string // YYYY-MM-DD, inclusive
	CreatedTo   string
	UpdatedFrom string
	UpdatedTo   string
	DeletedFrom string
	DeletedTo   string

	WithInactive bool
	OnlyInactive bool

	SortBy        string
	SortDirection string
}

var (
	actorSortable  = []string{"created_at", "updated_at", "deleted_at", "name", "email"}
	artistSortable = []string{"created_at", "updated_at", "deleted_at", "name", "popularity", "followers_count"}
)

// Users refines a User list query.
func Users(q *gorm.DB, p Params) *gorm.DB {
	q = applySearch(q, p.Search, "name", "email")
	q = applyRole(q, p.Role, actor.GuardUser)
	q = applyDateRanges(q, p)
	q = applyVisibility(q, p)
	return applySort(q, p, actorSortable)
}

// Admins refines an Admin list query.
func Admins(q *gorm.DB, p Params) *gorm.DB {
	q = applySearch(q, p.Search, "name", "email")
	q = applyRole(q, p.Role, actor.GuardAdmin)
	q = applyDateRanges(q, p)
	q = applyVisibility(q, p)
	return applySort(q, p, actorSortable)
}

// Artists refines an Artist list query.
func Artists(q *gorm.DB, p Params) *gorm.DB {
	q = applySearch(q, p.Search, "name", "spotify_id")
	if id, err := strconv.ParseUint(p.OwnerID, 10, 64); err == nil {
		q = q.Where("owner_id = ?", uint(id))
	}
	q = applyIntRange(q, "popularity", p.PopularityMin, p.PopularityMax)
	q = applyIntRange(q, "followers_count", p.FollowersMin, p.FollowersMax)
	q = applyDateRanges(q, p)
	q = applyVisibility(q, p)
	return applySort(q, p, artistSortable)
}

// Terms shorter than two characters apply no predicate at all. A match
// in either column is enough.
func applySearch(q *gorm.DB, term, nameCol, secondCol string) *gorm.DB {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < 2 {
		return q
	}
	like := "%" + strings.ToLower(term) + "%"
	return q.Where("LOWER("+nameCol+") LIKE ? OR LOWER("+secondCol+") LIKE ?", like, like)
}

// applyRole filters actors by role. Numeric input is taken as a role ID
// directly; anything else is resolved by name within the guard. An
// unresolvable name adds no predicate.
func applyRole(q *gorm.DB, role string, guard actor.Guard) *gorm.DB {
	role = strings.TrimSpace(role)
	if role == "" {
		return q
	}

	var roleID uint
	if id, err := strconv.ParseUint(role, 10, 64); err == nil {
		roleID = uint(id)
	} else {
		var r models.Role
		err := q.Session(&gorm.Session{NewDB: true}).
			Where("name = ? AND guard_name = ?", role, string(guard)).
			First(&r).Error
		if err != nil {
			return q
		}
		roleID = r.ID
	}

	sub := q.Session(&gorm.Session{NewDB: true}).
		Model(&models.ActorRole{}).
		Select("actor_id").
		Where("actor_guard = ? AND role_id = ?", string(guard), roleID)
	return q.Where("id IN (?)", sub)
}

func applyIntRange(q *gorm.DB, col, min, max string) *gorm.DB {
	if v, err := strconv.ParseInt(strings.TrimSpace(min), 10, 64); err == nil {
		q = q.Where(col+" >= ?", v)
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(max), 10, 64); err == nil {
		q = q.Where(col+" <= ?", v)
	}
	return q
}

func applyDateRanges(q *gorm.DB, p Params) *gorm.DB {
	q = applyDateRange(q, "created_at", p.CreatedFrom, p.CreatedTo)
	q = applyDateRange(q, "updated_at", p.UpdatedFrom, p.UpdatedTo)
	return applyDateRange(q, "deleted_at", p.DeletedFrom, p.DeletedTo)
}

// Day granularity, inclusive on both ends: from 00:00:00 through
// 23:59:59 of the named days.
func applyDateRange(q *gorm.DB, col, from, to string) *gorm.DB {
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(from)); err == nil {
		q = q.Where(col+" >= ?", t)
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(to)); err == nil {
		q = q.Where(col+" <= ?", t.Add(24*time.Hour-time.Second))
	}
	return q
}

// Default visibility excludes soft-deleted rows. with_inactive widens
// the set to include them; only_inactive narrows to soft-deleted rows
// and wins when both flags are set.
func applyVisibility(q *gorm.DB, p Params) *gorm.DB {
	if p.OnlyInactive {
		return q.Unscoped().Where("deleted_at IS NOT NULL")
	}
	if p.WithInactive {
		return q.Unscoped()
	}
	return q
}

// applySort discards any prior ordering, then orders by an allow-listed
// column. Unrecognized sort_by values fall back to created_at desc
// without erroring.
func applySort(q *gorm.DB, p Params, allowed []string) *gorm.DB {
	col := "created_at"
	for _, a := range allowed {
		if p.SortBy == a {
			col = a
			break
		}
	}

	dir := "desc"
	if strings.EqualFold(p.SortDirection, "asc") {
		dir = "asc"
	}

	delete(q.Statement.Clauses, "ORDER BY")
	return q.Order(col + " " + dir)
}
