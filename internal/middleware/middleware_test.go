package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type observation struct {
	method, path string
	status       int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{method, path, status})
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWTAttachesViewer(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher, FullName: "Ada"}}
	router := gin.New()
	router.GET("/me", JWT(validator), func(c *gin.Context) {
		viewer, ok := CurrentViewer(c)
		require.True(t, ok)
		fromCtx, ok := scheduler.ViewerFromContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, viewer, fromCtx)
		c.String(http.StatusOK, viewer.ID+"|"+viewer.Token)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-1|abc.def", rec.Body.String())
	assert.Equal(t, "abc.def", validator.seen)
}

func TestJWTRejectsMissingOrInvalidTokens(t *testing.T) {
	validator := &stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
	router := gin.New()
	router.GET("/me", JWT(validator), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer abc"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestRBAC(t *testing.T) {
	router := gin.New()
	withRole := func(role models.UserRole, id string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
			c.Next()
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/admin/students/:id", withRole(models.RoleAdmin, "a-1"), RBAC(string(models.RoleAdmin), RoleSelf), ok)
	router.GET("/self/students/:id", withRole(models.RoleStudent, "s-1"), RBAC(string(models.RoleAdmin), RoleSelf), ok)
	router.GET("/other/students/:id", withRole(models.RoleStudent, "s-2"), RBAC(string(models.RoleAdmin), RoleSelf), ok)
	router.GET("/teacher", withRole(models.RoleTeacher, "t-1"), RequireRoles(models.RoleAdmin), ok)
	router.GET("/anon", RequireRoles(models.RoleAdmin), ok)

	cases := map[string]int{
		"/admin/students/s-1": http.StatusOK,
		"/self/students/s-1":  http.StatusOK,
		"/other/students/s-1": http.StatusForbidden,
		"/teacher":            http.StatusForbidden,
		"/anon":               http.StatusUnauthorized,
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(observer, "/metrics"))
	router.GET("/schedules/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/schedules/e-1", "/metrics", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, observer.obs, 2)
	assert.Equal(t, observation{http.MethodGet, "/schedules/:id", http.StatusNoContent}, observer.obs[0])
	assert.Equal(t, observation{http.MethodGet, "unmatched", http.StatusNotFound}, observer.obs[1])
}
