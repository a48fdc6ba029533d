package apierr

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the struct tags on v and reports the first failure as a ValidationError.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return Validation("%s", err.Error())
	}

	fe := fields[0]
	name := fe.Namespace()
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return Validation("%s is required", name)
	case "oneof":
		return Validation("%s must be one of: %s", name, fe.Param())
	case "min":
		return Validation("%s must have at least %s", name, fe.Param())
	case "max":
		return Validation("%s must have at most %s", name, fe.Param())
	}
	return Validation("%s is invalid", name)
}
