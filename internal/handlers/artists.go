package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/stagehand/backline/internal/cache"
	"github.com/stagehand/backline/internal/lifecycle"
	"github.com/stagehand/backline/internal/policy"
	"github.com/stagehand/backline/internal/search"
)

type ArtistHandler struct {
	Service *lifecycle.ArtistService
	Cache   *cache.ListCache
	ES      *elasticsearch.Client
	Index   string
}

type createArtistRequest struct {
	OwnerID        *uint   `json:"owner_id"`
	SpotifyID      *string `json:"spotify_id"`
	Name           string  `json:"name"`
	Popularity     *int    `json:"popularity"`
	FollowersCount *int64  `json:"followers_count"`
}

type updateArtistRequest struct {
	OwnerID        *uint   `json:"owner_id"`
	SpotifyID      *string `json:"spotify_id"`
	Name           *string `json:"name"`
	Popularity     *int    `json:"popularity"`
	FollowersCount *int64  `json:"followers_count"`
}

func (h *ArtistHandler) List(c echo.Context) error {
	p := principalFrom(c)
	if err := policy.AuthorizeArtist(p, policy.ActionViewAny, nil); err != nil {
		return mapError(c, err)
	}

	ctx := c.Request().Context()
	key := cache.Key(lifecycle.EntityArtists, c.QueryString())
	if h.Cache != nil {
		if payload, ok := h.Cache.Get(ctx, key); ok {
			return c.JSONBlob(http.StatusOK, payload)
		}
	}

	artists, err := h.Service.List(ctx, bindFilterParams(c))
	if err != nil {
		return mapError(c, err)
	}

	if h.Cache != nil {
		if payload, err := json.Marshal(artists); err == nil {
			h.Cache.Set(ctx, key, payload)
		}
	}
	return c.JSON(http.StatusOK, artists)
}

// Search answers fuzzy name lookups from the elasticsearch mirror. The
// mirror trails the database, so results may briefly lag a write.
func (h *ArtistHandler) Search(c echo.Context) error {
	p := principalFrom(c)
	if err := policy.AuthorizeArtist(p, policy.ActionViewAny, nil); err != nil {
		return mapError(c, err)
	}

	query := c.QueryParam("q")
	if query == "" {
		return errorResponse(c, http.StatusBadRequest, "q is required")
	}
	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 || size > 100 {
		size = 20
	}

	total, artists, err := search.Artists(c.Request().Context(), h.ES, h.Index, query, from, size)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"total": total, "artists": artists})
}

func (h *ArtistHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	artist, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeArtist(principalFrom(c), policy.ActionView, artist); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, artist)
}

func (h *ArtistHandler) Create(c echo.Context) error {
	p := principalFrom(c)
	if err := policy.AuthorizeArtist(p, policy.ActionCreate, nil); err != nil {
		return mapError(c, err)
	}

	var req createArtistRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return errorResponse(c, http.StatusBadRequest, "name is required")
	}

	artist, err := h.Service.Create(c.Request().Context(), p.Ref, lifecycle.CreateArtistInput{
		OwnerID:        req.OwnerID,
		SpotifyID:      req.SpotifyID,
		Name:           req.Name,
		Popularity:     req.Popularity,
		FollowersCount: req.FollowersCount,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, artist)
}

func (h *ArtistHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	artist, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeArtist(p, policy.ActionUpdate, artist); err != nil {
		return mapError(c, err)
	}

	var req updateArtistRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.Service.Update(c.Request().Context(), p.Ref, id, lifecycle.UpdateArtistInput{
		OwnerID:        req.OwnerID,
		SpotifyID:      req.SpotifyID,
		Name:           req.Name,
		Popularity:     req.Popularity,
		FollowersCount: req.FollowersCount,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *ArtistHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	artist, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeArtist(p, policy.ActionDelete, artist); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.SoftDelete(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Restore authorizes against the trashed record so an owner can recover
// their own artist without the blanket permission.
func (h *ArtistHandler) Restore(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	artist, err := h.Service.GetAny(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeArtist(p, policy.ActionRestore, artist); err != nil {
		return mapError(c, err)
	}

	restored, err := h.Service.Restore(c.Request().Context(), p.Ref, id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, restored)
}

func (h *ArtistHandler) ForceDelete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	if err := policy.AuthorizeArtist(p, policy.ActionForceDelete, nil); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.ForceDelete(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ArtistHandler) AddPhoto(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	artist, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeArtist(p, policy.ActionUpdate, artist); err != nil {
		return mapError(c, err)
	}

	var req photoRequest
	if err := c.Bind(&req); err != nil || req.Folder == "" {
		return errorResponse(c, http.StatusBadRequest, "folder is required")
	}

	if err := h.Service.AddProfilePhoto(c.Request().Context(), p.Ref, id, req.Folder); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "profile photo attached"})
}

func (h *ArtistHandler) RemovePhoto(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	artist, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeArtist(p, policy.ActionUpdate, artist); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.RemoveProfilePhoto(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "profile photo removed"})
}
