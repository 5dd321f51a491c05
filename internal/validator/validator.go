package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/seacatering/subscription-service/internal/domain"
	ierr "github.com/seacatering/subscription-service/internal/errors"
)

// PhonePattern is the accepted Indonesian mobile number format.
var PhonePattern = regexp.MustCompile(`^08\d{8,11}$`)

var (
	validate *validator.Validate
	once     sync.Once
)

// NewValidator builds the shared validator with the domain tags registered.
func NewValidator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		mustRegister(v, "idphone", func(fl validator.FieldLevel) bool {
			return PhonePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "plan", func(fl validator.FieldLevel) bool {
			_, ok := domain.LookupPlan(domain.PlanID(fl.Field().String()))
			return ok
		})
		mustRegister(v, "mealtype", func(fl validator.FieldLevel) bool {
			return domain.MealType(fl.Field().String()).Valid()
		})
		mustRegister(v, "weekday", func(fl validator.FieldLevel) bool {
			return domain.DeliveryDay(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// ValidateRequest validates req and returns an ErrValidation carrying one
// message per offending field.
func ValidateRequest(req interface{}) error {
	if err := NewValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fe := range validateErrs {
				details[fe.Field()] = fieldMessage(fe)
			}
		}
		return ierr.WithError(err).
			WithHint("Please correct the highlighted fields.").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("select at least %s", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "idphone":
		return "must be a valid Indonesian phone number (08xxxxxxxxx)"
	case "plan":
		return "must be one of diet, protein, royal"
	case "mealtype":
		return "must be one of breakfast, lunch, dinner"
	case "weekday":
		return "must be a day of the week"
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "email":
		return "must be a valid email address"
	}
	return "is invalid"
}

// ValidateEmail checks the address format.
func ValidateEmail(email string) error {
	if err := NewValidator().Var(email, "required,email"); err != nil {
		return ierr.WithError(err).
			WithHint("Please enter a valid email address.").
			WithReportableDetails(map[string]any{"email": "must be a valid email address"}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidatePassword enforces at least 8 characters with upper and lower case
// letters, a digit and a special character.
func ValidatePassword(password string) error {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	var missing []string
	if len([]rune(password)) < 8 {
		missing = append(missing, "at least 8 characters")
	}
	if !upper {
		missing = append(missing, "an uppercase letter")
	}
	if !lower {
		missing = append(missing, "a lowercase letter")
	}
	if !digit {
		missing = append(missing, "a number")
	}
	if !special {
		missing = append(missing, "a special character")
	}
	if len(missing) == 0 {
		return nil
	}

	return ierr.NewError("password policy not met").
		WithHint("Password must contain "+strings.Join(missing, ", ")+".").
		WithReportableDetails(map[string]any{"password": missing}).
		Mark(ierr.ErrValidation)
}
