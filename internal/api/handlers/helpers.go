package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pratik-mahalle/tocguard/internal/api/middleware"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
	"github.com/pratik-mahalle/tocguard/internal/pkg/utils"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
)

// actorFrom returns the body value, falling back to the X-User-ID header
func actorFrom(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get(middleware.UserIDHeader)
}

// parseID reads a positive int64 path parameter
func parseID(r *http.Request, name string) (int64, *errors.AppError) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("Invalid " + name)
	}
	return id, nil
}

// decode reads a JSON body into req and runs struct validation on it
func decode(r *http.Request, val *validator.Validator, req interface{}) *errors.AppError {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return errors.BadRequest("Invalid request body")
	}
	if errs := val.Validate(req); len(errs) > 0 {
		return errors.ValidationError("Validation failed", errs)
	}
	return nil
}

// writeServiceError writes an AppError as is and wraps anything else as internal
func writeServiceError(w http.ResponseWriter, err error, msg string) {
	if appErr, ok := errors.AsAppError(err); ok {
		utils.WriteError(w, appErr)
		return
	}
	utils.WriteError(w, errors.Internal(msg, err))
}
