package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/b3datalake/datalake-api/internal/passwords"
	"github.com/b3datalake/datalake-api/internal/tokens"
	"github.com/b3datalake/datalake-api/internal/users"
	"github.com/b3datalake/datalake-api/pkg/middleware"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *tokens.Issuer) {
	t.Helper()
	iss, err := tokens.NewIssuer("handler-test-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	svc := users.NewService(users.NewMemoryUserRepository(), passwords.NewHasher(bcrypt.MinCost))
	g := gin.New()
	NewAuthHandler(svc, iss).Register(g)
	g.GET("/whoami", middleware.AuthMiddleware(iss), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("sub"))
	})
	return g, iss
}

func register(g *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func login(g *gin.Engine, username, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestRegisterThenLogin(t *testing.T) {
	g, iss := newAuthRouter(t)

	w := register(g, `{"username":"alice","password":"s3cret"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var reg TokenResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.Equal(t, "bearer", reg.TokenType)
	sub, ok := iss.VerifyToken(reg.AccessToken)
	assert.True(t, ok)
	assert.Equal(t, "alice", sub)

	w = login(g, "alice", "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	var tok TokenResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	sub, ok = iss.VerifyToken(tok.AccessToken)
	assert.True(t, ok)
	assert.Equal(t, "alice", sub)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "alice", rw.Body.String())
}

func TestRegisterDuplicateUsername(t *testing.T) {
	g, _ := newAuthRouter(t)
	assert.Equal(t, http.StatusOK, register(g, `{"username":"bob","password":"pw"}`).Code)
	w := register(g, `{"username":"bob","password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already registered")
}

func TestRegisterBadBody(t *testing.T) {
	g, _ := newAuthRouter(t)
	assert.Equal(t, http.StatusBadRequest, register(g, `{"username":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, register(g, `not json`).Code)
	long := strings.Repeat("p", 80)
	assert.Equal(t, http.StatusBadRequest, register(g, `{"username":"x","password":"`+long+`"}`).Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	g, _ := newAuthRouter(t)
	assert.Equal(t, http.StatusOK, register(g, `{"username":"carol","password":"right"}`).Code)

	assert.Equal(t, http.StatusBadRequest, login(g, "carol", "wrong").Code)
	assert.Equal(t, http.StatusBadRequest, login(g, "nobody", "right").Code)
	assert.Equal(t, http.StatusBadRequest, login(g, "", "").Code)
}

func TestProtectedRouteRejectsForeignToken(t *testing.T) {
	g, _ := newAuthRouter(t)
	other, err := tokens.NewIssuer("some-other-secret", "HS256", time.Minute)
	assert.NoError(t, err)
	tok, err := other.CreateToken("alice")
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
