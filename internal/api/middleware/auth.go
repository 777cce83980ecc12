// Package middleware provides gin middleware for authentication, rate limiting and request telemetry.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/config"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// UserIDHeader identifies the caller when token verification is disabled.
const UserIDHeader = "X-User-ID"

const actorKey = "actor"

// UserResolver looks up the acting user.
type UserResolver interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetBySubject(ctx context.Context, subject string) (*models.User, error)
}

// Authenticate resolves the acting user for every request. With auth enabled it verifies an HS256
// bearer token and looks the user up by its "sub" claim; otherwise the X-User-ID header is trusted.
func Authenticate(cfg *config.AuthConfig, users UserResolver, log *logger.Logger) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	parser := jwt.NewParser(parserOptions(cfg)...)

	return func(c *gin.Context) {
		var (
			user *models.User
			err  error
		)

		if cfg.Enabled {
			user, err = resolveToken(c, parser, secret, users)
		} else {
			user, err = resolveHeader(c, users)
		}

		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Request not authenticated")
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		SetActor(c, user)
		c.Next()
	}
}

// Actor returns the authenticated user stored by Authenticate.
func Actor(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// SetActor stores the acting user on the context.
func SetActor(c *gin.Context, user *models.User) {
	c.Set(actorKey, user)
}

func parserOptions(cfg *config.AuthConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return opts
}

func resolveToken(c *gin.Context, parser *jwt.Parser, secret []byte, users UserResolver) (*models.User, error) {
	raw := bearerFromHeader(c.GetHeader("Authorization"))
	if raw == "" {
		return nil, errors.New("missing bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("token has no subject")
	}

	return users.GetBySubject(c.Request.Context(), subject)
}

func resolveHeader(c *gin.Context, users UserResolver) (*models.User, error) {
	raw := c.GetHeader(UserIDHeader)
	if raw == "" {
		return nil, errors.New("missing " + UserIDHeader + " header")
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil, apperrors.New(apperrors.InvalidInput, "auth.header", "invalid user id "+raw)
	}

	return users.GetByID(c.Request.Context(), uint(id))
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
