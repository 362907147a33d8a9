package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/pkg/apperror"
)

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Validate reports the first failing field as a validation error.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.Validation(validationMessage(fe))
	}
	return apperror.Validation(err.Error())
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// normalizer is implemented by requests that clean their fields before validation.
type normalizer interface {
	normalize()
}

// bindAndValidate decodes the body into req and runs the validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperror.BadRequest("invalid request body").Wrap(err)
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

// paramID parses a positive integer path parameter.
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.BadRequest(fmt.Sprintf("invalid %s", name))
	}
	return uint(id), nil
}

// queryID parses an optional positive integer query parameter.
func queryID(c echo.Context, name string) (*uint, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, apperror.BadRequest(fmt.Sprintf("invalid %s", name))
	}
	v := uint(id)
	return &v, nil
}

// pagination reads limit/offset query params with a default page of 50 and a cap of 200.
func pagination(c echo.Context) (limit, offset int) {
	limit, offset = 50, 0
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 200 {
		limit = 200
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// recordAudit sends a successful mutation to the audit sink.
func recordAudit(c echo.Context, rec audit.Recorder, action, resource string, resourceID uint, payload interface{}) {
	entry := audit.Entry{
		Action:     action,
		Resource:   resource,
		ResourceID: uintString(resourceID),
		Payload:    payload,
		IPAddress:  c.RealIP(),
		RequestID:  middleware.RequestID(c),
	}
	if p := middleware.Principal(c); p != nil {
		entry.ActorID = p.ID
	}
	if r := middleware.Restaurant(c); r != nil {
		id := r.ID
		entry.RestaurantID = &id
	}
	rec.Record(c.Request().Context(), entry)
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
