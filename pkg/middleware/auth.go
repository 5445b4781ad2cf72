package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"skyvault/file-api/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errNoToken = errors.New("no bearer token")

// RequireAuth rejects requests without a valid bearer token and sets
// userID for the handlers downstream.
func RequireAuth(d *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		userID, err := resolveCaller(c, d)
		if err != nil {
			if errors.Is(err, errNoToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "No authorization token provided",
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Authorization token invalid",
				"requestID": requestID,
			})

			zap.L().Debug("Rejected token", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// OptionalAuth resolves the caller identity when a valid bearer token
// is present and lets the request through anonymously otherwise. The
// handlers decide what anonymous callers may do.
func OptionalAuth(d *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := resolveCaller(c, d)
		if err == nil {
			c.Set("userID", userID)
		}

		c.Next()
	}
}

func resolveCaller(c *gin.Context, d *gorm.DB) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errNoToken
	}

	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errNoToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return []byte(viper.GetString("jwt.secret")), nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", errors.New("token invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", errors.New("user_id claim missing")
	}

	exp, ok := claims["exp"].(float64)
	if !ok || time.Now().Unix() >= int64(exp) {
		return "", errors.New("token expired")
	}

	var user model.User
	if err := d.Where("id = ?", userID).First(&user).Error; err != nil {
		return "", fmt.Errorf("unknown user, %w", err)
	}

	// A password change revokes every token issued before it
	if user.PasswordChangedAt != nil {
		iat, ok := claims["iat"].(float64)
		if !ok || user.PasswordChangedAt.Unix() > int64(iat) {
			return "", errors.New("token issued before password change")
		}
	}

	return userID, nil
}
