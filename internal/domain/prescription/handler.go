package prescription

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/auth"
	"github.com/careline/careline/pkg/envelope"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/prescriptions", h.Upload)
	api.GET("/prescriptions/user/:userId", h.ListByUser)
	api.GET("/prescriptions/:id", h.Get)
	api.GET("/prescriptions/:id/file", h.Download)
	api.POST("/prescriptions/:id/summarize", h.Summarize)
	api.DELETE("/prescriptions/:id", h.Delete)
}

func parseUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s: %s", name, raw)
	}
	return id, nil
}

// owner picks the profile the upload belongs to: the userId form field when
// present, else the caller's own profile. Uploading for someone else needs
// the doctor or admin role.
func (h *Handler) owner(c echo.Context) (uuid.UUID, error) {
	ctx := c.Request().Context()
	id := auth.IdentityFromContext(ctx)
	staff := auth.HasAnyRole(id.Roles, auth.RoleDoctor)

	var self uuid.UUID
	if p, err := h.svc.profiles.GetByExternalID(ctx, id.Subject); err == nil {
		self = p.ID
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return uuid.Nil, err
	}

	raw := c.FormValue("userId")
	if raw == "" {
		if self == uuid.Nil {
			return uuid.Nil, apperr.Validation("register a profile before uploading prescriptions")
		}
		return self, nil
	}
	target, err := parseUUID(raw, "userId")
	if err != nil {
		return uuid.Nil, err
	}
	if target != self && !staff {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "cannot upload prescriptions for another user")
	}
	return target, nil
}

func (h *Handler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperr.Validation("file is required")
	}
	userID, err := h.owner(c)
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	p, err := h.svc.Upload(c.Request().Context(), userID, Upload{
		FileName:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Body:        src,
		Notes:       c.FormValue("notes"),
	})
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrUnsupportedType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case err != nil:
		return err
	}
	return envelope.OKMessage(c, http.StatusCreated, p, "prescription uploaded")
}

func (h *Handler) ListByUser(c echo.Context) error {
	userID, err := parseUUID(c.Param("userId"), "userId")
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseUUID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, p)
}

func (h *Handler) Download(c echo.Context) error {
	id, err := parseUUID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	p, rc, err := h.svc.Download(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", p.FileName))
	return c.Stream(http.StatusOK, p.ContentType, rc)
}

func (h *Handler) Summarize(c echo.Context) error {
	id, err := parseUUID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Summarize(c.Request().Context(), id)
	if err != nil {
		return err
	}
	msg := "prescription summarized"
	if p.Status == StatusFailed {
		msg = "summary unavailable, fallback stored"
	}
	return envelope.OKMessage(c, http.StatusOK, p, msg)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseUUID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusOK, map[string]string{"id": id.String()}, "prescription deleted")
}
