package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type fakeUsers map[uint]*model.User

func (f fakeUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	if id == 500 {
		return nil, errors.New("db down")
	}
	u, ok := f[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	return u, nil
}

func newRouter(users UserLookup, roles ...model.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(secret), AttachRole(users))
	if len(roles) > 0 {
		r.Use(RoleMiddleware(roles...))
	}
	r.GET("/whoami", func(c *gin.Context) {
		actor, _ := util.GetActor(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.UserID, "role": actor.Role})
	})
	return r
}

func token(t *testing.T, id uint, role model.UserRole) string {
	tok, err := util.GenerateJWT(id, role, secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	r := newRouter(fakeUsers{})
	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "garbage").Code)

	other, err := util.GenerateJWT(1, model.Student, "another-secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, other).Code)

	expired, err := util.GenerateJWT(1, model.Student, secret, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, expired).Code)
}

func TestAttachRolePrefersStoredRole(t *testing.T) {
	users := fakeUsers{
		1: {BaseModel: model.BaseModel{ID: 1}, Role: "Teacher"},
		2: {BaseModel: model.BaseModel{ID: 2}, Role: model.Student, Disabled: true},
	}
	r := newRouter(users)

	w := get(r, token(t, 1, model.Student))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"role":"tutor"}`, w.Body.String())

	// unknown to the users table: the token role stands
	w = get(r, token(t, 9, model.Admin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":9,"role":"admin"}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, get(r, token(t, 2, model.Student)).Code)
	assert.Equal(t, http.StatusInternalServerError, get(r, token(t, 500, model.Student)).Code)
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter(fakeUsers{}, model.Tutor)
	assert.Equal(t, http.StatusForbidden, get(r, token(t, 1, model.Student)).Code)
	assert.Equal(t, http.StatusOK, get(r, token(t, 2, model.Tutor)).Code)
	assert.Equal(t, http.StatusOK, get(r, token(t, 3, model.SuperAdmin)).Code)
}

func TestTokenFromQuery(t *testing.T) {
	r := newRouter(fakeUsers{})
	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token(t, 4, model.Student), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
