package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lbaudin/androfleet/internal/repositories"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/lbaudin/androfleet/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// AuthHandler issues admin session tokens. Accounts are created by the
// provision command, never over HTTP.
type AuthHandler struct {
	Admins    repositories.AdminUserRepository
	JWTSecret string
}

// Claims is the admin JWT payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// POST /api/v1/auth/login
// Login godoc
// @Summary Admin login
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	type Input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	var input Input
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil || input.Username == "" || input.Password == "" {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	user, err := h.Admins.ByUsername(r.Context(), input.Username)
	if err == servicecore.ErrNotFound {
		utils.Fail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		utils.Fail(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		utils.Fail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	expiresAt := time.Now().Add(tokenTTL)
	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.JWTSecret))
	if err != nil {
		utils.Fail(w, http.StatusInternalServerError, "Failed to sign token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	utils.OK(w, "Logged in", map[string]any{
		"token":      signed,
		"expires_at": expiresAt,
	})
}

// POST /api/v1/admin/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	utils.OK(w, "Logged out", nil)
}
