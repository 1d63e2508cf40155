package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. Failures come back as
// validation errors with a readable reason.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return common.Validationf("request body is empty")
		}
		return common.Validationf("malformed request body")
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return common.Validationf("%s", describe(verrs[0]))
		}
		return common.ErrInvalidInput
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s is too long", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps an error to its HTTP status and the detail shown to the
// client. Authentication and authorization failures carry no detail.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrUnauthenticated), errors.Is(err, common.ErrForbidden):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrConflict):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrState), errors.Is(err, common.ErrInsufficientBalance):
		return http.StatusConflict, err.Error()
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, common.ErrInternal.Error()
	}
}

func writeError(ctx context.Context, log logging.Logger, w http.ResponseWriter, err error) {
	status, detail := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(ctx, "request failed", "request_id", middleware.GetReqID(ctx), "error", err)
	}
	writeDetail(w, status, detail)
}
