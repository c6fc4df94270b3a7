package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON reads the request body into dst and validates its struct tags.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &AppError{Code: "BAD_REQUEST", Message: "invalid payload", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	if err := validate.Struct(dst); err != nil {
		return &AppError{
			Code:       "VALIDATION_FAILED",
			Message:    "payload failed validation",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        err,
			Details:    validationDetails(err),
		}
	}
	return nil
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}

// PathIndex parses a non-negative integer URL parameter.
func PathIndex(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		return 0, &AppError{
			Code:       "BAD_REQUEST",
			Message:    fmt.Sprintf("%s must be a non-negative integer", name),
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
		}
	}
	return idx, nil
}
