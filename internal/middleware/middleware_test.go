package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeadmin/api/internal/models"
	"storeadmin/api/internal/revocation"
	"storeadmin/api/internal/security"
	"storeadmin/api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenAuth checks the registry before the signature, like the auth service.
type tokenAuth struct {
	issuer   *security.TokenIssuer
	registry revocation.Registry
	users    map[string]models.User
}

func (a tokenAuth) Authenticate(ctx context.Context, bearer string) (models.User, *security.AccessClaims, error) {
	if bearer == "" {
		return models.User{}, nil, &service.Error{Kind: service.ErrUnauthorized, Message: "Missing bearer token"}
	}
	revoked, err := a.registry.IsBlacklisted(ctx, bearer)
	if err != nil {
		return models.User{}, nil, err
	}
	if revoked {
		return models.User{}, nil, &service.Error{Kind: service.ErrUnauthorized, Message: "Token has been revoked"}
	}
	claims, err := a.issuer.Parse(bearer)
	if err != nil {
		return models.User{}, nil, &service.Error{Kind: service.ErrUnauthorized, Message: "Invalid or expired token"}
	}
	return a.users[claims.UserID()], claims, nil
}

type stubSessions map[string]models.Session

func (s stubSessions) ValidateSession(_ context.Context, token string) (models.Session, bool, error) {
	session, ok := s[token]
	return session, ok, nil
}

type stubGuard struct {
	allow bool
	err   error
	seen  []models.Requirement
}

func (g *stubGuard) Authorize(_ context.Context, actor *models.User, reqs []models.Requirement) (bool, error) {
	g.seen = reqs
	if g.err != nil {
		return false, g.err
	}
	return actor != nil && g.allow, nil
}

func newAuthFixture(t *testing.T) (tokenAuth, string) {
	t.Helper()
	auth := tokenAuth{
		issuer:   security.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour),
		registry: revocation.NewMemoryRegistry(),
		users: map[string]models.User{
			"u-1": {ID: "u-1", Email: "ana@example.com", Role: models.UserRoleAdmin, IsActive: true},
		},
	}
	token, _, err := auth.issuer.Issue("u-1", "ana@example.com", string(models.UserRoleAdmin))
	require.NoError(t, err)
	return auth, token
}

func serve(r *gin.Engine, method, path, bearer string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsBlacklistedTokenThoughValid(t *testing.T) {
	auth, token := newAuthFixture(t)
	r := gin.New()
	r.GET("/me", Auth(auth, nil), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		assert.Equal(t, token, AccessToken(c))
		c.String(http.StatusOK, user.ID)
	})

	rec := serve(r, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", rec.Body.String())

	require.NoError(t, auth.registry.Blacklist(context.Background(), token))
	_, err := auth.issuer.Parse(token)
	require.NoError(t, err, "token is still cryptographically valid")

	rec = serve(r, http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Token has been revoked"}`, rec.Body.String())
}

func TestAuthMissingOrMalformedHeader(t *testing.T) {
	auth, token := newAuthFixture(t)
	r := gin.New()
	r.GET("/me", Auth(auth, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Missing bearer token"}`, rec.Body.String())

	rec = serve(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Token " + token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSessionHeader(t *testing.T) {
	auth, token := newAuthFixture(t)
	sessions := stubSessions{
		"mine":   {ID: "s-1", UserID: "u-1", IsActive: true},
		"theirs": {ID: "s-2", UserID: "u-2", IsActive: true},
	}
	r := gin.New()
	r.GET("/me", Auth(auth, sessions), func(c *gin.Context) {
		session, ok := CurrentSession(c)
		if ok {
			c.String(http.StatusOK, session.ID)
			return
		}
		c.Status(http.StatusOK)
	})

	rec := serve(r, http.MethodGet, "/me", token, map[string]string{SessionTokenHeader: "mine"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-1", rec.Body.String())

	rec = serve(r, http.MethodGet, "/me", token, map[string]string{SessionTokenHeader: "theirs"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(r, http.MethodGet, "/me", token, map[string]string{SessionTokenHeader: "gone"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermissions(t *testing.T) {
	withUser := func(c *gin.Context) {
		c.Set(ctxUser, models.User{ID: "u-1", Role: models.UserRoleAdmin})
	}
	products := models.Require(models.ResourceProducts, models.ActionCreate)

	cases := []struct {
		name   string
		guard  *stubGuard
		user   bool
		status int
	}{
		{name: "no actor", guard: &stubGuard{allow: true}, status: http.StatusUnauthorized},
		{name: "denied", guard: &stubGuard{}, user: true, status: http.StatusForbidden},
		{name: "allowed", guard: &stubGuard{allow: true}, user: true, status: http.StatusOK},
		{name: "store failure", guard: &stubGuard{err: errors.New("db down")}, user: true, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			chain := []gin.HandlerFunc{}
			if tc.user {
				chain = append(chain, withUser)
			}
			chain = append(chain, RequirePermissions(tc.guard, products), func(c *gin.Context) { c.Status(http.StatusOK) })
			r.POST("/products", chain...)

			rec := serve(r, http.MethodPost, "/products", "", nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, []models.Requirement{products}, tc.guard.seen)
		})
	}
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	r := gin.New()
	r.POST("/login", RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestRateLimiterForgetsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(0.001, 1)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	now = now.Add(11 * time.Minute)
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.NotContains(t, limiter.visitors, "10.0.0.1")
}

type routeObserver struct {
	routes []string
}

func (o *routeObserver) RequestStarted() func(method, route, status string) {
	return func(method, route, status string) {
		o.routes = append(o.routes, method+" "+route+" "+status)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &routeObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, http.MethodGet, "/users/42", "", nil)
	serve(r, http.MethodGet, "/nowhere", "", nil)

	assert.Equal(t, []string{"GET /users/:id 204", "GET unmatched 404"}, observer.routes)
}

func TestRequestIDEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	rec := serve(r, http.MethodGet, "/", "", map[string]string{"X-Request-Id": "req-1"})
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "req-1", rec.Body.String())

	rec = serve(r, http.MethodGet, "/", "", nil)
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)
}
