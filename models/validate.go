package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/princinho/toursbackend/apperror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(JSONFieldName)
	v.RegisterStructValidation(tourDiscountBelowPrice, Tour{})
	return v
}

// JSONFieldName reports fields by their json name so messages match the
// request body. Also installed on gin's binding validator.
func JSONFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func tourDiscountBelowPrice(sl validator.StructLevel) {
	t := sl.Current().Interface().(Tour)
	if t.Discount > 0 && t.Discount >= t.Price {
		sl.ReportError(t.Discount, "discount", "Discount", "ltprice", "")
	}
}

// Validate runs the struct's validate tags and returns a ValidationFailed
// error listing every violation.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return apperror.Wrap(apperror.ValidationFailed, ValidationMessage(err), err)
	}
	return nil
}

// ValidationMessage renders validator errors as a client-facing sentence
// list. Other errors are returned as their message.
func ValidationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, ". ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if isString {
			return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must have at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, fe.Param())
	case "ltprice":
		return fmt.Sprintf("Discount price %v cannot exceed regular tour price", fe.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
