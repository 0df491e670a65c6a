package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stagehand/backline/internal/cache"
	"github.com/stagehand/backline/internal/lifecycle"
	"github.com/stagehand/backline/internal/policy"
)

type AdminHandler struct {
	Service *lifecycle.AdminService
	Cache   *cache.ListCache
}

type createAdminRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateAdminRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (h *AdminHandler) List(c echo.Context) error {
	p := principalFrom(c)
	if err := policy.AuthorizeAdmin(p, policy.ActionViewAny, nil); err != nil {
		return mapError(c, err)
	}

	ctx := c.Request().Context()
	key := cache.Key(lifecycle.EntityAdmins, c.QueryString())
	if h.Cache != nil {
		if payload, ok := h.Cache.Get(ctx, key); ok {
			return c.JSONBlob(http.StatusOK, payload)
		}
	}

	admins, err := h.Service.List(ctx, bindFilterParams(c))
	if err != nil {
		return mapError(c, err)
	}

	if h.Cache != nil {
		if payload, err := json.Marshal(admins); err == nil {
			h.Cache.Set(ctx, key, payload)
		}
	}
	return c.JSON(http.StatusOK, admins)
}

func (h *AdminHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	admin, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeAdmin(principalFrom(c), policy.ActionView, admin); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, admin)
}

func (h *AdminHandler) Create(c echo.Context) error {
	p := principalFrom(c)
	if err := policy.AuthorizeAdmin(p, policy.ActionCreate, nil); err != nil {
		return mapError(c, err)
	}

	var req createAdminRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return errorResponse(c, http.StatusBadRequest, "email and password are required")
	}

	admin, err := h.Service.Create(c.Request().Context(), p.Ref, lifecycle.CreateAdminInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, admin)
}

func (h *AdminHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	admin, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeAdmin(p, policy.ActionUpdate, admin); err != nil {
		return mapError(c, err)
	}

	var req updateAdminRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.Service.Update(c.Request().Context(), p.Ref, id, lifecycle.UpdateAdminInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *AdminHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	admin, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeAdmin(p, policy.ActionDelete, admin); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.SoftDelete(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) Restore(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	if err := policy.AuthorizeAdmin(p, policy.ActionRestore, nil); err != nil {
		return mapError(c, err)
	}

	admin, err := h.Service.Restore(c.Request().Context(), p.Ref, id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, admin)
}

func (h *AdminHandler) ForceDelete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	if err := policy.AuthorizeAdmin(p, policy.ActionForceDelete, nil); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.ForceDelete(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) AddPhoto(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	admin, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeAdmin(p, policy.ActionUpdate, admin); err != nil {
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

func (h *AdminHandler) RemovePhoto(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	admin, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeAdmin(p, policy.ActionUpdate, admin); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.RemoveProfilePhoto(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "profile photo removed"})
}

func (h *AdminHandler) SendPasswordReset(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	admin, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeAdmin(p, policy.ActionSendPasswordResetLink, admin); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.SendPasswordResetLink(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "password reset link sent"})
}
