package middleware

import (
	"context"
	"errors"
	"strings"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware turns a bearer token into an Actor. The role from the token
// is provisional until AttachRole has looked the user up.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil || claims.UserID == 0 {
			logger.Log.Debug("rejecting token", zap.String("path", c.FullPath()), zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		util.SetActor(c, model.Actor{UserID: claims.UserID, Role: model.ParseRole(claims.Role)})
		c.Next()
	}
}

type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// AttachRole replaces the token's role with the one stored for the user.
// Users unknown to this service keep the token role; disabled users are
// turned away.
func AttachRole(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := util.GetActor(c)
		if !ok {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		u, err := users.FindByID(c.Request.Context(), actor.UserID)
		switch {
		case err == nil:
			if u.Disabled {
				util.Forbidden(c)
				c.Abort()
				return
			}
			actor.Role = model.ParseRole(string(u.Role))
			util.SetActor(c, actor)
		case errors.Is(err, util.ErrUserNotFound):
		default:
			util.LogInternalError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RoleMiddleware admits the listed roles. Admins are always admitted.
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := util.GetActor(c)
		if !ok {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if actor.IsAdmin() {
			c.Next()
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		util.Forbidden(c)
		c.Abort()
	}
}
