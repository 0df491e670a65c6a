package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/stagehand/backline/internal/filter"
	"github.com/stagehand/backline/internal/lifecycle"
	"github.com/stagehand/backline/internal/oauth"
	"github.com/stagehand/backline/internal/policy"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorResponse(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{Status: "error", Message: message})
}

// mapError translates domain outcomes into HTTP codes. Forbidden,
// not-found and invariant violations are distinct outcomes, never
// conflated.
func mapError(c echo.Context, err error) error {
	var fd *lifecycle.ForceDeleteActiveRecordError
	switch {
	case errors.Is(err, policy.ErrForbidden):
		return errorResponse(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, lifecycle.ErrNotFound),
		errors.Is(err, lifecycle.ErrRoleNotFound),
		errors.Is(err, lifecycle.ErrNoPhoto),
		errors.Is(err, lifecycle.ErrTempUploadNotFound),
		errors.Is(err, oauth.ErrNoActiveToken):
		return errorResponse(c, http.StatusNotFound, err.Error())
	case errors.As(err, &fd):
		return errorResponse(c, http.StatusUnprocessableEntity, fd.Error())
	default:
		return errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func bindFilterParams(c echo.Context) filter.Params {
	return filter.Params{
		Search:        c.QueryParam("search"),
		OwnerID:       c.QueryParam("owner_id"),
		Role:          firstNonEmpty(c.QueryParam("role_id"), c.QueryParam("role")),
		PopularityMin: c.QueryParam("popularity_min"),
		PopularityMax: c.QueryParam("popularity_max"),
		FollowersMin:  c.QueryParam("followers_min"),
		FollowersMax:  c.QueryParam("followers_max"),
		CreatedFrom:   c.QueryParam("created_from"),
		CreatedTo:     c.QueryParam("created_to"),
		UpdatedFrom:   c.QueryParam("updated_from"),
		UpdatedTo:     c.QueryParam("updated_to"),
		DeletedFrom:   c.QueryParam("deleted_from"),
		DeletedTo:     c.QueryParam("deleted_to"),
		WithInactive:  c.QueryParam("with_inactive") == "true",
		OnlyInactive:  c.QueryParam("only_inactive") == "true",
		SortBy:        c.QueryParam("sort_by"),
		SortDirection: c.QueryParam("sort_direction"),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
