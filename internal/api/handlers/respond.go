package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/lbaudin/androfleet/internal/service/servicecore"
	"github.com/lbaudin/androfleet/internal/utils"
)

// serviceError maps the service error taxonomy onto HTTP statuses. Device
// callers are automated, so messages stay terse and machine-usable.
func serviceError(w http.ResponseWriter, err error) {
	var ve *servicecore.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.Fail(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, servicecore.ErrNotFound):
		utils.Fail(w, http.StatusNotFound, "not found")
	case errors.Is(err, servicecore.ErrInvalidCredentials):
		utils.Fail(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, servicecore.ErrConflict):
		utils.Fail(w, http.StatusConflict, "conflict")
	default:
		utils.Fail(w, http.StatusInternalServerError, "internal error")
	}
}

// pathDeviceID reads the {id} path segment.
func pathDeviceID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func queryInt64Ptr(r *http.Request, key string) (*int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func queryBool(r *http.Request, key string) bool {
	return r.URL.Query().Get(key) == "true"
}
