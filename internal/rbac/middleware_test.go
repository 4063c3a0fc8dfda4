package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"receptionist-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveWithRole(t *testing.T, tenantID, role string, guard gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u-1", tenantID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireTenant(), guard, func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveWithRole(t, "tenant-1", RoleSuperAdmin, RequireAnyRole(RoleOwner)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	if code := serveWithRole(t, "tenant-1", RoleSupport, RequireAnyRole(RoleOwner)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_HiddenRolePassesWhenNamed(t *testing.T) {
	if code := serveWithRole(t, "tenant-1", RoleSupport, RequireAnyRole(RoleOwner, RoleSupport)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniedRole(t *testing.T) {
	if code := serveWithRole(t, "tenant-1", RoleAnalyst, RequireAnyRole(RoleOwner, RoleDispatcher)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireTenant_MissingTenant(t *testing.T) {
	if code := serveWithRole(t, "", RoleOwner, RequireAnyRole(RoleOwner)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}
