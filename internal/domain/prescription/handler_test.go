package prescription

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careline/careline/internal/platform/auth"
	"github.com/careline/careline/internal/platform/middleware"
)

func newTestRouter(svc *Service, id auth.Identity) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(zerolog.Nop())
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(api)
	return e
}

type envelopeBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func multipartBody(t *testing.T, fileName, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func upload(t *testing.T, e *echo.Echo, fileName, contentType string, data []byte, fields map[string]string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	body, ct := multipartBody(t, fileName, contentType, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func request(t *testing.T, e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

var ownerCaller = auth.Identity{Subject: "sub-1", Email: "jane@example.com", Roles: []string{auth.RolePatient}}

func TestHandler_UploadListDownload(t *testing.T) {
	f := newFixture(t)
	e := newTestRouter(f.svc, ownerCaller)

	rec, env := upload(t, e, "rx.txt", "text/plain", []byte(rxText), map[string]string{"notes": "refill"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p Prescription
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, f.owner.ID, p.UserID)
	assert.Equal(t, "refill", p.Notes)
	assert.NotContains(t, string(env.Data), "blobKey")

	rec = request(t, e, http.MethodGet, "/api/v1/prescriptions/user/"+f.owner.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var list envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	var items []Prescription
	require.NoError(t, json.Unmarshal(list.Data, &items))
	require.Len(t, items, 1)

	rec = request(t, e, http.MethodGet, "/api/v1/prescriptions/"+p.ID.String()+"/file")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rxText, rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="rx.txt"`)

	rec = request(t, e, http.MethodPost, "/api/v1/prescriptions/"+p.ID.String()+"/summarize")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, e, http.MethodDelete, "/api/v1/prescriptions/"+p.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	rec = request(t, e, http.MethodGet, "/api/v1/prescriptions/"+p.ID.String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UploadErrors(t *testing.T) {
	f := newFixture(t)
	e := newTestRouter(f.svc, ownerCaller)

	rec, _ := upload(t, e, "rx.zip", "application/zip", []byte("PK\x03\x04"), nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec, env := upload(t, e, "rx.txt", "text/plain", []byte(rxText), map[string]string{"userId": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	other := newTestRouter(f.svc, auth.Identity{Subject: "stranger", Roles: []string{auth.RolePatient}})
	rec, _ = upload(t, other, "rx.txt", "text/plain", []byte(rxText), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "caller without a profile")

	rec, _ = upload(t, other, "rx.txt", "text/plain", []byte(rxText), map[string]string{"userId": f.owner.ID.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	doctor := newTestRouter(f.svc, auth.Identity{Subject: "doc-1", Roles: []string{auth.RoleDoctor}})
	rec, _ = upload(t, doctor, "rx.txt", "text/plain", []byte(rxText), map[string]string{"userId": f.owner.ID.String()})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandler_BadIDs(t *testing.T) {
	f := newFixture(t)
	e := newTestRouter(f.svc, ownerCaller)

	assert.Equal(t, http.StatusBadRequest, request(t, e, http.MethodGet, "/api/v1/prescriptions/nope").Code)
	assert.Equal(t, http.StatusBadRequest, request(t, e, http.MethodGet, "/api/v1/prescriptions/user/nope").Code)
	assert.Equal(t, http.StatusNotFound,
		request(t, e, http.MethodPost, "/api/v1/prescriptions/1b4e28ba-2fa1-11d2-883f-0016d3cca427/summarize").Code)
}
