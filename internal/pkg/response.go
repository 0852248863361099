package pkg

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/query"
)

// DataResponse wraps a single document.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse wraps one page of documents.
type ListResponse struct {
	Results          int              `json:"results"`
	PaginationResult query.Pagination `json:"paginationResult"`
	Data             any              `json:"data"`
}

// ErrorResponse is the JSON envelope for every failed request.
type ErrorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Data sends data wrapped in a DataResponse with the given status.
func Data(c *gin.Context, status int, data any) {
	c.JSON(status, DataResponse{Data: data})
}

// List sends a 200 ListResponse. results is the number of documents on the page.
func List(c *gin.Context, results int, p query.Pagination, data any) {
	c.JSON(http.StatusOK, ListResponse{
		Results:          results,
		PaginationResult: p,
		Data:             data,
	})
}

// Error sends an ErrorResponse. If err is a *domain.AppError, its kind is
// mapped to the appropriate HTTP status; otherwise 500 is returned and the
// cause is not exposed.
func Error(c *gin.Context, err error) {
	status := domain.HTTPStatusCode(err)
	resp := ErrorResponse{Status: domain.Status(status), Message: "internal error"}

	var appErr *domain.AppError
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		resp.Message = appErr.Message
		resp.Errors = appErr.Fields
	}
	c.JSON(status, resp)
}

// BindAndValidate binds the JSON request body to obj and validates it.
// Failures are returned as a validation *domain.AppError whose Fields are
// keyed by JSON tag names. Usage in handlers:
//
//	if err := pkg.BindAndValidate(c, &req); err != nil { _ = c.Error(err); return }
func BindAndValidate(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return ValidationError(err, obj)
	}
	return nil
}

// ValidationError converts a binding error into a validation *domain.AppError.
// When obj is non-nil, JSON tag names are preferred for field keys.
func ValidationError(err error, obj any) *domain.AppError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return domain.NewAppError(domain.KindValidation, "invalid request body", err)
	}

	jsonTags := buildJSONTagMap(obj)
	fieldErrors := make(map[string]string, len(ve))
	for _, fe := range ve {
		name, ok := jsonTags[fe.StructField()]
		if !ok {
			name = strings.ToLower(fe.Field())
		}
		fieldErrors[name] = fieldMessage(fe)
	}
	return &domain.AppError{
		Kind:    domain.KindValidation,
		Message: "validation error",
		Fields:  fieldErrors,
		Err:     err,
	}
}

// fieldMessage renders a human readable message for one failed rule.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "mongodb":
		return "Must be a valid id"
	case "email":
		return "Must be a valid email address"
	}
	msg := fe.Tag()
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return msg
}

// buildJSONTagMap returns a map from struct field name to its JSON tag name.
// If obj is nil or not a struct (pointer), it returns an empty map.
func buildJSONTagMap(obj any) map[string]string {
	if obj == nil {
		return nil
	}
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	m := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if name := parseJSONTagName(f.Tag.Get("json")); name != "" {
			m[f.Name] = name
		}
	}
	return m
}

// parseJSONTagName extracts the field name from a JSON struct tag value.
func parseJSONTagName(tag string) string {
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return ""
	}
	return name
}
