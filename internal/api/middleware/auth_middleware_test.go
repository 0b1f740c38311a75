package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	config "github.com/maheshrc27/scheduling-engine/configs"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
	"github.com/maheshrc27/scheduling-engine/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func newProtectedApp() *fiber.App {
	m := NewAuthMiddleware(config.Config{SecretKey: testSecret, CookieName: "session"})
	app := fiber.New()
	app.Get("/me", m.AuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	return app
}

func sessionToken(t *testing.T, secret, owner string, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, transfer.SessionClaims{
		OwnerID: owner,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    utils.SessionIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthMiddlewareBearer(t *testing.T) {
	token := sessionToken(t, testSecret, "o1", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := newProtectedApp().Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "o1", string(body))
}

func TestAuthMiddlewareCookie(t *testing.T) {
	token := sessionToken(t, testSecret, "o2", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	resp, err := newProtectedApp().Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "o2", string(body))
}

func TestAuthMiddlewareRejects(t *testing.T) {
	expired := sessionToken(t, testSecret, "o1", -time.Minute)
	foreign := sessionToken(t, "another-secret", "o1", time.Hour)

	for name, header := range map[string]string{
		"missing": "",
		"expired": "Bearer " + expired,
		"foreign": "Bearer " + foreign,
		"scheme":  "Basic " + foreign,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := newProtectedApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
