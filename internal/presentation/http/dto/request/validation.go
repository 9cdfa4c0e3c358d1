package request

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sangkips/quotation-api/pkg/apperror"
)

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	registerOnce sync.Once
	registerErr  error
)

// ValidPhone reports whether s is a 10 digit phone number
func ValidPhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

// RegisterValidators installs the custom tags on gin's validator and makes
// field errors report json names.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("unexpected validator engine")
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		registerErr = v.RegisterValidation("phone", ValidPhone)
	})
	return registerErr
}

var tagMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"phone":    "must be a 10 digit phone number",
	"eqfield":  "does not match",
	"oneof":    "is not an allowed value",
}

// FieldErrors converts binding validation errors to API field errors. It
// returns nil for errors that are not validation failures.
func FieldErrors(err error) []apperror.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		switch {
		case ok:
		case fe.Tag() == "min":
			msg = "must be at least " + fe.Param() + " characters"
		case fe.Tag() == "max":
			msg = "must be at most " + fe.Param() + " characters"
		default:
			msg = "is invalid"
		}
		out = append(out, apperror.FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
