package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "sitepulse/internal/errors"
	"sitepulse/pkg/contracts/domain"
)

// jsonBodyLimit bounds JSON request bodies. Uploads go through
// multipart and are limited separately.
const jsonBodyLimit = 10 * 1024 * 1024

// ValidationMiddleware validates JSON bodies on the way in and request
// DTOs via struct tags. Custom tags cover the domain enums so the DTOs
// stay declarative.
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New()
	registerDomainTags(v)

	// Report fields by their JSON names so clients can match errors to
	// the payload they sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
	}
}

func registerDomainTags(v *validator.Validate) {
	v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	})
	v.RegisterValidation("defect_status", func(fl validator.FieldLevel) bool {
		switch domain.DefectStatus(fl.Field().String()) {
		case domain.DefectOpen, domain.DefectAssigned, domain.DefectInProgress,
			domain.DefectCompleted, domain.DefectApproved, domain.DefectRejected:
			return true
		}
		return false
	})
	v.RegisterValidation("filename", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" || len(name) > 255 {
			return false
		}
		return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
	})
}

// ValidateRequest rejects oversized or malformed JSON bodies before a
// handler sees them. Reads with no body and multipart uploads pass
// through untouched.
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > jsonBodyLimit {
			m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				map[string]interface{}{
					"max_size": jsonBodyLimit,
					"size":     r.ContentLength,
				},
			))
			return
		}

		if r.Body != nil && r.ContentLength > 0 {
			body, err := io.ReadAll(io.LimitReader(r.Body, jsonBodyLimit))
			if err != nil {
				m.logger.ErrorContext(r.Context(), "failed to read request body",
					slog.String("error", err.Error()))
				m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(body) > 0 && !json.Valid(body) {
				m.errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					"INVALID_JSON",
					"Request body contains invalid JSON",
				))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateStruct runs tag validation on a decoded request DTO and maps
// the failures to a single validation error the handler can forward.
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// messageFormats holds the client-facing text per validation tag. %[1]s
// is the field name, %[2]s the tag parameter.
var messageFormats = map[string]string{
	"required":      "%[1]s is required",
	"min":           "%[1]s must be at least %[2]s",
	"max":           "%[1]s must be at most %[2]s",
	"gte":           "%[1]s must be greater than or equal to %[2]s",
	"lte":           "%[1]s must be less than or equal to %[2]s",
	"email":         "%[1]s must be a valid email address",
	"iso8601":       "%[1]s must be a valid ISO8601 date",
	"role":          "%[1]s must be a valid role",
	"defect_status": "%[1]s must be a valid defect status",
	"filename":      "%[1]s must be a valid filename",
}

func validationMessage(fe validator.FieldError) string {
	if fe.Tag() == "oneof" {
		return fmt.Sprintf("%s must be one of: %s",
			fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	if format, ok := messageFormats[fe.Tag()]; ok {
		return fmt.Sprintf(format, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// QueryParamValidator checks list-style query parameters and answers
// the error response itself, so handlers can bail with a bare return.
type QueryParamValidator struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateInt reads an integer query parameter, enforcing [min, max].
// A missing parameter yields defaultValue. The second return reports
// whether the handler should continue.
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max, defaultValue int) (int, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return defaultValue, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		v.errorHandler.HandleError(w, r,
			apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param)))
		return 0, false
	}
	if n < min || n > max {
		v.errorHandler.HandleError(w, r,
			apierrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}
	return n, true
}
