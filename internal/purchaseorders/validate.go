package purchaseorders

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/angelmondragon/posync/pkg/portal"
	"github.com/angelmondragon/posync/pkg/types"
	"github.com/go-playground/validator/v10"
)

var (
	validate   = newValidator()
	zipPattern = regexp.MustCompile(`^\d{5}$`)
)

// FieldError is one violation, addressed by its JSON path (e.g. lines[0].quantity).
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Path + ": " + e.Message
}

// ValidationErrors lists every violation of one order in field order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.String())
	}
	return strings.Join(parts, "; ")
}

// Has reports whether path carries a violation.
func (v ValidationErrors) Has(path string) bool {
	for _, fe := range v {
		if fe.Path == path {
			return true
		}
	}
	return false
}

type enumValue interface {
	IsValid() bool
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if m, ok := field.Interface().(types.Money); ok {
			return m.Float64()
		}
		return nil
	}, types.Money{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if n, ok := field.Interface().(types.Number); ok {
			return n.Float64()
		}
		return nil
	}, types.Number{})
	_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(enumValue)
		return ok && value.IsValid()
	})
	_ = v.RegisterValidation("zip5", func(fl validator.FieldLevel) bool {
		return zipPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks the whole document and returns every violation, coercion problems included.
// The order is returned unchanged; numbers were already normalized by Translate.
func Validate(t Translated) (portal.PurchaseOrder, ValidationErrors) {
	errs := append(ValidationErrors{}, t.coercion...)

	if err := validate.Struct(&t.Order); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			errs = append(errs, FieldError{Path: "", Message: err.Error()})
			return t.Order, errs
		}
		for _, fe := range fieldErrs {
			path := fieldPath(fe.Namespace())
			if errs.Has(path) {
				continue
			}
			errs = append(errs, FieldError{Path: path, Message: validationMessage(fe)})
		}
	}

	if len(errs) > 0 {
		return t.Order, errs
	}
	return t.Order, nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "enum":
		return fmt.Sprintf("%q is not an accepted value", fmt.Sprint(fe.Value()))
	case "iso4217":
		return fmt.Sprintf("%q is not an ISO 4217 currency code", fmt.Sprint(fe.Value()))
	case "datetime":
		return fmt.Sprintf("must be a date formatted as %s", fe.Param())
	case "zip5":
		return "must be a 5-digit postal code"
	}
	return "is invalid"
}
