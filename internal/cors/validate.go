package cors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cors-gateway/internal/config"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("origin_pattern", func(fl validator.FieldLevel) bool {
		return validOriginPattern(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("failed to register origin_pattern validator: %v", err))
	}
}

// Validate checks a partial CORS configuration and returns every problem
// found as a *CompilationError, joined.
func Validate(c *config.CorsConfig) error {
	if c == nil {
		return nil
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &CompilationError{
			Field:  fe.Field(),
			Value:  fmt.Sprint(fe.Value()),
			Reason: reason(fe.Tag()),
		})
	}
	return errors.Join(errs...)
}

func reason(tag string) string {
	switch tag {
	case "origin_pattern":
		return "a wildcard must be the single first host label, as in http://*.example.com"
	case "required":
		return "must not be empty"
	case "min":
		return "must not be negative"
	case "oneof":
		return "must be one of replace, preserve or merge"
	default:
		return "failed " + tag + " check"
	}
}
