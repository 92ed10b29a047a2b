// Package validation holds the shared validator instance and the storefront's
// custom tags (zipcode, uf).
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// ZipCodePattern accepts a CEP with or without the dash: 01001-000 or 01001000.
var ZipCodePattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)

var ufPattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

var (
	once     sync.Once
	instance *validator.Validate
)

var customTags = map[string]validator.Func{
	"zipcode": func(fl validator.FieldLevel) bool {
		return ZipCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	},
	"uf": func(fl validator.FieldLevel) bool {
		return ufPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	},
}

func registerTags(v *validator.Validate, tags map[string]validator.Func) error {
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation tag %q: %w", tag, err)
		}
	}
	return nil
}

// Validator returns the process-wide validator, reporting json field names.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if tag == "" || tag == "-" {
				return f.Name
			}
			return tag
		})
		if err := registerTags(v, customTags); err != nil {
			panic(err)
		}
		instance = v
	})
	return instance
}

// Struct validates dest and converts failures into a VALIDATION_ERROR whose
// details map field paths to messages.
func Struct(dest any) error {
	if err := Validator().Struct(dest); err != nil {
		return FormatErrors(err)
	}
	return nil
}

func FormatErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldPath(fieldErr)] = message(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

// fieldPath drops the root struct name: "Form.shipping_address.zip_code" -> "shipping_address.zip_code".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "zipcode":
		return "must be a valid CEP (00000-000)"
	case "uf":
		return "must be a 2-letter state code"
	}
	return "is invalid"
}
