package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stagehand/backline/internal/cache"
	"github.com/stagehand/backline/internal/lifecycle"
	"github.com/stagehand/backline/internal/policy"
)

type UserHandler struct {
	Service *lifecycle.UserService
	Cache   *cache.ListCache
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (h *UserHandler) List(c echo.Context) error {
	p := principalFrom(c)
	if err := policy.AuthorizeUser(p, policy.ActionViewAny, nil); err != nil {
		return mapError(c, err)
	}

	ctx := c.Request().Context()
	key := cache.Key(lifecycle.EntityUsers, c.QueryString())
	if h.Cache != nil {
		if payload, ok := h.Cache.Get(ctx, key); ok {
			return c.JSONBlob(http.StatusOK, payload)
		}
	}

	users, err := h.Service.List(ctx, bindFilterParams(c))
	if err != nil {
		return mapError(c, err)
	}

	if h.Cache != nil {
		if payload, err := json.Marshal(users); err == nil {
			h.Cache.Set(ctx, key, payload)
		}
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	user, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeUser(principalFrom(c), policy.ActionView, user); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Create(c echo.Context) error {
	p := principalFrom(c)
	if err := policy.AuthorizeUser(p, policy.ActionCreate, nil); err != nil {
		return mapError(c, err)
	}

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return errorResponse(c, http.StatusBadRequest, "email and password are required")
	}

	user, err := h.Service.Create(c.Request().Context(), p.Ref, lifecycle.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	user, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeUser(p, policy.ActionUpdate, user); err != nil {
		return mapError(c, err)
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.Service.Update(c.Request().Context(), p.Ref, id, lifecycle.UpdateUserInput{
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

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	user, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeUser(p, policy.ActionDelete, user); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.SoftDelete(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) Restore(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	if err := policy.AuthorizeUser(p, policy.ActionRestore, nil); err != nil {
		return mapError(c, err)
	}

	user, err := h.Service.Restore(c.Request().Context(), p.Ref, id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ForceDelete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	if err := policy.AuthorizeUser(p, policy.ActionForceDelete, nil); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.ForceDelete(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type photoRequest struct {
	Folder string `json:"folder"`
}

func (h *UserHandler) AddPhoto(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	user, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeUser(p, policy.ActionUpdate, user); err != nil {
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

func (h *UserHandler) RemovePhoto(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	user, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeUser(p, policy.ActionUpdate, user); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.RemoveProfilePhoto(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "profile photo removed"})
}

func (h *UserHandler) SendPasswordReset(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid id")
	}

	p := principalFrom(c)
	user, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if err := policy.AuthorizeUser(p, policy.ActionSendPasswordResetLink, user); err != nil {
		return mapError(c, err)
	}

	if err := h.Service.SendPasswordResetLink(c.Request().Context(), p.Ref, id); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "password reset link sent"})
}
