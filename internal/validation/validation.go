// Package validation holds the shared input rules for numbers, amounts and credentials.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

var msisdnPattern = regexp.MustCompile(`^[5-9][0-9]{9}$`)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the process-wide validator with the "msisdn" tag registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
			return msisdnPattern.MatchString(fl.Field().String())
		})
		instance = v
	})
	return instance
}

// Transfer is a transfer request as entered by the user.
type Transfer struct {
	To     string `validate:"required,msisdn"`
	Amount int64  `validate:"gte=0"`
}

// Registration is a sign-up request.
type Registration struct {
	Name string `validate:"required,min=2,max=40"`
	Num  string `validate:"required,msisdn"`
	Pass string `validate:"required,min=8"`
}

// Login is a sign-in request.
type Login struct {
	Num  string `validate:"required,msisdn"`
	Pass string `validate:"required"`
}

// Struct validates s and flattens field errors into one readable error.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid input: %s", strings.Join(msgs, "; "))
}

// IsMSISDN reports whether num is a plausible 10 digit mobile number.
func IsMSISDN(num string) bool {
	return msisdnPattern.MatchString(num)
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "msisdn":
		return field + " must be a valid 10 digit mobile number"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
