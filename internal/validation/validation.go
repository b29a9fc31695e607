package validation

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"chitchat/internal/constants"
	"chitchat/internal/errors"

	"github.com/go-playground/validator/v10"
)

var (
	namePattern     = regexp.MustCompile(`^[a-zA-Z0-9_\s]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	specialChars    = `!@#$%^&*(),.?":{}|<>`
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		mustRegister(v, "displayname", func(fl validator.FieldLevel) bool {
			return namePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "handle", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "nounderscoresuffix", func(fl validator.FieldLevel) bool {
			return !strings.HasSuffix(fl.Field().String(), "_")
		})
		mustRegister(v, "looseemail", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return strings.Contains(s, "@") && strings.Contains(s, ".")
		})
		mustRegister(v, "hasupper", runeCheck(unicode.IsUpper))
		mustRegister(v, "haslower", runeCheck(unicode.IsLower))
		mustRegister(v, "hasdigit", runeCheck(unicode.IsDigit))
		mustRegister(v, "hasspecial", runeCheck(func(r rune) bool {
			return strings.ContainsRune(specialChars, r)
		}))
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func runeCheck(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), pred) >= 0
	}
}

// Registration is the user input accepted by sign-up. Field order is the
// order rules are reported in.
type Registration struct {
	Name     string `validate:"notblank,min=5,displayname,nounderscoresuffix"`
	Username string `validate:"notblank,min=5,handle,nounderscoresuffix"`
	Email    string `validate:"notblank,looseemail"`
	Password string `validate:"required,min=8,max=72,hasupper,haslower,hasdigit,hasspecial"`
}

var ruleMessages = map[string]string{
	"Name.notblank":               "Name cannot be empty",
	"Name.min":                    fmt.Sprintf("Name must be at least %d characters long", constants.MinNameLength),
	"Name.displayname":            "Name can only contain letters, numbers, and underscore",
	"Name.nounderscoresuffix":     "Name cannot end with an underscore",
	"Username.notblank":           "Username cannot be empty",
	"Username.min":                fmt.Sprintf("Username must be at least %d characters long", constants.MinUsernameLength),
	"Username.handle":             "Username can only contain letters, numbers, and underscore",
	"Username.nounderscoresuffix": "Username cannot end with an underscore",
	"Email.notblank":              "Email cannot be empty",
	"Email.looseemail":            "Email must contain @ and .",
	"Password.required":           "Password is required",
	"Password.min":                fmt.Sprintf("Password must be at least %d characters long", constants.MinPasswordLength),
	"Password.max":                fmt.Sprintf("Password must be at most %d characters long", constants.MaxPasswordLength),
	"Password.hasupper":           "Password must include at least one uppercase letter",
	"Password.haslower":           "Password must include at least one lowercase letter",
	"Password.hasdigit":           "Password must include at least one digit",
	"Password.hasspecial":         "Password must include at least one special character",
}

// ValidateRegistration reports the first failing rule as a validation error.
func ValidateRegistration(reg Registration) error {
	return Struct(reg)
}

// Struct validates v and converts the first failure into a validation
// AppError carrying the field name.
func Struct(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}

	first := fieldErrs[0]
	msg, ok := ruleMessages[first.Field()+"."+first.Tag()]
	if !ok {
		msg = fmt.Sprintf("%s failed the %s rule", first.Field(), first.Tag())
	}
	return errors.NewValidationError(lowerFirst(first.Field()), "", msg)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ValidateID checks an identifier taken from a path or payload.
func ValidateID(field, id string) error {
	if id == "" {
		return errors.NewValidationError(field, "", fmt.Sprintf("%s cannot be empty", field))
	}

	if len(id) > constants.MaxMessageIDLength {
		return errors.NewValidationError(field, "",
			fmt.Sprintf("%s too long (max %d characters)", field, constants.MaxMessageIDLength))
	}

	for _, char := range id {
		if unicode.IsControl(char) || unicode.IsSpace(char) {
			return errors.NewValidationError(field, "", fmt.Sprintf("%s contains invalid characters", field))
		}
	}

	return nil
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > 3600 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max 3600 seconds)", fieldName))
	}

	return nil
}
