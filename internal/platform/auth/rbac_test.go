package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runWithRoles(mw echo.MiddlewareFunc, roles []string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{Subject: "u", Roles: roles}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, mw(okHandler)(c)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		roles   []string
		allowed bool
	}{
		{"doctor allowed", []string{RoleDoctor}, true},
		{"admin bypass", []string{RoleAdmin}, true},
		{"patient denied", []string{RolePatient}, false},
		{"no roles", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := runWithRoles(RequireRole(RoleDoctor), tt.roles)
			if tt.allowed {
				if err != nil {
					t.Fatalf("expected pass, got %v", err)
				}
				if rec.Code != http.StatusOK {
					t.Errorf("expected 200, got %d", rec.Code)
				}
				return
			}
			expectStatus(t, err, http.StatusForbidden)
		})
	}
}

func TestHasAnyRole(t *testing.T) {
	if !HasAnyRole([]string{RolePatient, RoleDoctor}, RoleDoctor) {
		t.Error("expected doctor match")
	}
	if HasAnyRole([]string{RolePatient}, RoleDoctor) {
		t.Error("expected no match")
	}
	if !HasAnyRole([]string{RoleAdmin}) {
		t.Error("expected admin to match with no required roles")
	}
}
