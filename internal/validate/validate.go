// Package validate checks request structs with go-playground/validator and
// turns failures into apperr issues.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())

	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	val.RegisterValidation("household_role", func(fl validator.FieldLevel) bool {
		return model.ValidRole(fl.Field().String())
	})

	return val
}

// Struct validates s and returns an *apperr.Error of kind validation, or nil.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal("validate request", err)
	}

	issues := make([]apperr.Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, issueFor(fe))
	}
	return apperr.Validation(issues...)
}

// Var validates a single value under the given field name.
func Var(field string, value any, tag string) error {
	err := v.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal("validate value", err)
	}
	issue := issueFor(verrs[0])
	issue.Origin = field
	issue.Path = []string{field}
	issue.Message = strings.Replace(issue.Message, "value", field, 1)
	return apperr.Validation(issue)
}

func issueFor(fe validator.FieldError) apperr.Issue {
	path := splitNamespace(fe.Namespace())
	field := fe.Field()
	if field == "" {
		field = "value"
	}
	origin := field
	if len(path) > 0 {
		origin = path[0]
	}
	return apperr.Issue{
		Origin:  origin,
		Code:    codeFor(fe.Tag()),
		Path:    path,
		Message: messageFor(field, fe),
	}
}

// splitNamespace turns "Req.members[0].email" into ["members", "0", "email"].
func splitNamespace(ns string) []string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	} else {
		parts = nil
	}

	path := []string{}
	for _, p := range parts {
		for p != "" {
			i := strings.IndexByte(p, '[')
			if i < 0 {
				path = append(path, p)
				break
			}
			if i > 0 {
				path = append(path, p[:i])
			}
			j := strings.IndexByte(p, ']')
			if j < i {
				path = append(path, p[i:])
				break
			}
			path = append(path, p[i+1:j])
			p = p[j+1:]
		}
	}
	return path
}

func codeFor(tag string) string {
	switch tag {
	case "required":
		return "invalid_type"
	case "min", "gte", "gt":
		return "too_small"
	case "max", "lte", "lt":
		return "too_big"
	case "email", "url", "http_url", "uuid", "uuid4":
		return "invalid_format"
	case "oneof", "household_role":
		return "invalid_value"
	default:
		return "custom"
	}
}

func messageFor(field string, fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "household_role":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(model.Roles, ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
