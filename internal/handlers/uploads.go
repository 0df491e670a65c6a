package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stagehand/backline/internal/tempfile"
)

// UploadHandler stages multipart uploads. The returned folder UUID is
// what photo-attach endpoints consume.
type UploadHandler struct {
	Temp *tempfile.Service
}

func (h *UploadHandler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "file is required")
	}

	tf, err := h.Temp.Register(c.Request().Context(),
		file.Filename, file.Header.Get("Content-Type"), file.Size)
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"folder":        tf.Folder,
		"original_name": tf.OriginalName,
		"expires_at":    tf.ExpiresAt,
	})
}
