package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lbaudin/androfleet/internal/utils"
)

type contextKey string

// AdminUserKey carries the authenticated admin username.
const AdminUserKey contextKey = "adminUser"

// AdminAuth guards the admin API. The token comes from the "token" cookie or
// an Authorization bearer header; device-facing endpoints never pass through
// here.
func AdminAuth(jwtSecret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr := bearerToken(r)
		if tokenStr == "" {
			if c, err := r.Cookie("token"); err == nil {
				tokenStr = c.Value
			}
		}
		if tokenStr == "" {
			utils.Fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			utils.Fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			utils.Fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		username, ok := claims["username"].(string)
		if !ok || username == "" {
			utils.Fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), AdminUserKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
