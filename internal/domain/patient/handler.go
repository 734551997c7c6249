package patient

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/auth"
	"github.com/careline/careline/pkg/envelope"
	"github.com/careline/careline/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/users", h.Register)
	api.GET("/users/me", h.Me)
	api.GET("/users/email/:email", h.GetByEmail)
	api.GET("/users/:id", h.Get)
	api.PUT("/users/:id", h.Update)
	api.GET("/doctors", h.ListDoctors)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/users/:id", h.Deactivate)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id: %s", c.Param("id"))
	}
	return id, nil
}

// emailParam returns the decoded :email path parameter. Routing matches on
// the raw path so "@" may still arrive as %40.
func emailParam(c echo.Context) (string, error) {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil {
		return "", apperr.Validation("invalid email: %s", c.Param("email"))
	}
	return email, nil
}

// Register creates a profile. Callers register themselves as patients;
// admins may register any role and set the external id.
func (h *Handler) Register(c echo.Context) error {
	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	caller := auth.IdentityFromContext(c.Request().Context())
	if !caller.HasRole(auth.RoleAdmin) {
		if p.Role != "" && p.Role != RolePatient {
			return echo.NewHTTPError(http.StatusForbidden, "only administrators can register "+p.Role+" profiles")
		}
		p.ExternalID = caller.Subject
	} else if p.ExternalID == "" {
		p.ExternalID = caller.Subject
	}
	if err := h.svc.Register(c.Request().Context(), &p); err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusCreated, p, "profile registered")
}

// Me resolves the caller's profile by subject, then by token email.
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	caller := auth.IdentityFromContext(ctx)
	p, err := h.svc.GetByExternalID(ctx, caller.Subject)
	if errors.Is(err, apperr.ErrNotFound) && caller.Email != "" {
		p, err = h.svc.GetByEmail(ctx, caller.Email)
	}
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, p)
}

func (h *Handler) GetByEmail(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetByEmail(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, p)
}

// Update edits a profile. Non-admins may only edit their own.
func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in Profile
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	caller := auth.IdentityFromContext(ctx)
	isAdmin := caller.HasRole(auth.RoleAdmin)
	if !isAdmin {
		current, err := h.svc.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.ExternalID != caller.Subject {
			return echo.NewHTTPError(http.StatusForbidden, "cannot edit another user's profile")
		}
	}

	p, err := h.svc.Update(ctx, id, &in, UpdateOptions{AllowRoleChange: isAdmin})
	if err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusOK, p, "profile updated")
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusOK, p, "profile deactivated")
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), c.QueryParam("specialization"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, pg.Page(items, total))
}
