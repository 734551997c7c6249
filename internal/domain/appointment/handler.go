package appointment

import (
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
	api.GET("/appointments/email/:email", h.ListByEmail)
	api.GET("/appointments/patient/:patientId", h.ListByPatient)
	api.GET("/appointments/:id", h.Get)
	api.POST("/appointments", h.Create)
	api.POST("/appointments/from-form", h.CreateFromForm)
	api.PATCH("/appointments/:id/reschedule", h.Reschedule)
	api.PATCH("/appointments/:id/cancel", h.Cancel)

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor))
	staff.GET("/appointments", h.Search)
	staff.PUT("/appointments/:id/status", h.UpdateStatus)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/appointments/:id", h.Delete)
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

type createRequest struct {
	Appointment
	AppointmentDate string `json:"appointmentDate"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a := req.Appointment
	if req.AppointmentDate != "" {
		d, err := ParseDate(req.AppointmentDate, h.svc.loc)
		if err != nil {
			return apperr.Validation("%s", err.Error())
		}
		a.AppointmentDate = d
	}
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusCreated, a, "appointment created")
}

func (h *Handler) CreateFromForm(c echo.Context) error {
	var f Form
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	res, err := h.svc.CreateFromForm(ctx, f, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusCreated, res, "appointment created")
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, a)
}

func (h *Handler) ListByEmail(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListByEmail(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, items)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	items, err := h.svc.ListByPatient(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, items)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := SearchParams{Status: c.QueryParam("status")}
	if d := c.QueryParam("date"); d != "" {
		date, err := ParseDate(d, h.svc.loc)
		if err != nil {
			return apperr.Validation("%s", err.Error())
		}
		params.Date = &date
	}
	if d := c.QueryParam("doctorId"); d != "" {
		id, err := uuid.Parse(d)
		if err != nil {
			return apperr.Validation("invalid doctorId: %s", d)
		}
		params.DoctorID = &id
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, pg.Page(items, total))
}

type statusRequest struct {
	Status string `json:"status"`
	Force  bool   `json:"force"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	if req.Force && !auth.IdentityFromContext(ctx).HasRole(auth.RoleAdmin) {
		return echo.NewHTTPError(http.StatusForbidden, "only administrators can force a status change")
	}
	a, err := h.svc.UpdateStatus(ctx, id, req.Status, req.Force)
	if err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusOK, a, "appointment status updated")
}

type rescheduleRequest struct {
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AppointmentDate == "" || req.AppointmentTime == "" {
		return apperr.Validation("appointmentDate and appointmentTime are required")
	}
	date, err := ParseDate(req.AppointmentDate, h.svc.loc)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	a, err := h.svc.Reschedule(c.Request().Context(), id, date, req.AppointmentTime)
	if err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusOK, a, "appointment rescheduled")
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusOK, a, "appointment cancelled")
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return envelope.OKMessage(c, http.StatusOK, map[string]string{"id": id.String()}, "appointment deleted")
}
