package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyHeader = "X-API-Key"

// apiKeyMiddleware accepts requests whose X-API-Key matches the bcrypt hash.
// An empty hash rejects every request.
func apiKeyMiddleware(keyHash string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + apiKeyHeader,
		Validator: func(key string, _ echo.Context) (bool, error) {
			if keyHash == "" {
				return false, nil
			}
			return bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) == nil, nil
		},
		ErrorHandler: func(error, echo.Context) error {
			return errInvalidAPIKey
		},
	})
}
