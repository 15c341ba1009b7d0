package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/example/bookhub/internal/internaltypes"
	"github.com/go-playground/validator/v10"
)

// CustomerValidator checks customer contact details before any provider is
// called.
type CustomerValidator struct {
	validate *validator.Validate
}

func NewCustomerValidator() *CustomerValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return "customer_" + name
	})
	return &CustomerValidator{validate: v}
}

// Validate trims the customer fields in place and returns a *ValidationError
// listing every problem.
func (v *CustomerValidator) Validate(c *Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	if err := v.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return translateValidationErrors(verrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) error {
	out := make([]internaltypes.Violation, 0, len(errs))
	for _, err := range errs {
		message := err.Error()
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		}
		out = append(out, internaltypes.Violation{Field: err.Field(), Message: message})
	}
	return internaltypes.NewValidationError(out...)
}
