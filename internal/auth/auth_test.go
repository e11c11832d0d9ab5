package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"

	"templegames/internal/model"
)

const testSecret = "test-secret"

func testUser() *model.User {
	return &model.User{ID: 7, TempleID: 10, Role: model.RoleTempleAdmin}
}

func TestIssueAndParseTokenRoundTrip(t *testing.T) {
	token, err := IssueToken(testSecret, testUser(), time.Hour)
	require.NoError(t, err)

	cl, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cl.UserID)
	assert.Equal(t, int64(10), cl.TempleID)
	assert.Equal(t, model.RoleTempleAdmin, cl.Role)
	assert.Equal(t, issuer, cl.Issuer)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(testSecret, testUser(), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := IssueToken(testSecret, testUser(), -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, token)
	assert.Error(t, err)
}

func middlewareRouter(extra ...ginext.HandlerFunc) *ginext.Engine {
	app := ginext.New("release")
	handlers := append([]ginext.HandlerFunc{Middleware(testSecret)}, extra...)
	handlers = append(handlers, func(c *ginext.Context) {
		c.JSON(http.StatusOK, map[string]int64{
			"uid":       UserID(c),
			"temple_id": TempleID(c),
		})
	})
	app.GET("/guarded", handlers...)
	return app
}

func TestMiddlewareAcceptsValidBearerToken(t *testing.T) {
	token, err := IssueToken(testSecret, testUser(), time.Hour)
	require.NoError(t, err)

	app := middlewareRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":7`)
	assert.Contains(t, rec.Body.String(), `"temple_id":10`)
}

func TestMiddlewareRejectsMissingAndMalformedHeaders(t *testing.T) {
	app := middlewareRouter()

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"no bearer prefix", "token-without-prefix"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireTempleAdminBlocksPlainUsers(t *testing.T) {
	user := testUser()
	user.Role = model.RoleUser
	token, err := IssueToken(testSecret, user, time.Hour)
	require.NoError(t, err)

	app := middlewareRouter(RequireTempleAdmin())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
