package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"julianmorley.ca/con-plar/petstore/pkg/errs"
)

// Form holds the shipping and payment fields of one checkout attempt. Field
// order is the order validation reports them in.
type Form struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Email      string `json:"email" validate:"required,checkout_email"`
	Phone      string `json:"phone" validate:"required,checkout_phone"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	ZipCode    string `json:"zipCode" validate:"required"`
	CardNumber string `json:"cardNumber" validate:"required,checkout_card"`
	ExpiryDate string `json:"expiryDate" validate:"required,checkout_expiry"`
	CVV        string `json:"cvv" validate:"required,checkout_cvv"`
}

// FormPatch is a partial form update; nil fields are left alone.
type FormPatch struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	ZipCode    *string `json:"zipCode"`
	CardNumber *string `json:"cardNumber"`
	ExpiryDate *string `json:"expiryDate"`
	CVV        *string `json:"cvv"`
}

var ErrUnknownField = errors.New("unknown checkout field")

func (f *Form) field(name string) (*string, bool) {
	switch name {
	case "firstName":
		return &f.FirstName, true
	case "lastName":
		return &f.LastName, true
	case "email":
		return &f.Email, true
	case "phone":
		return &f.Phone, true
	case "address":
		return &f.Address, true
	case "city":
		return &f.City, true
	case "state":
		return &f.State, true
	case "zipCode":
		return &f.ZipCode, true
	case "cardNumber":
		return &f.CardNumber, true
	case "expiryDate":
		return &f.ExpiryDate, true
	case "cvv":
		return &f.CVV, true
	}
	return nil, false
}

func (p FormPatch) apply(f *Form) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&f.FirstName, p.FirstName)
	set(&f.LastName, p.LastName)
	set(&f.Email, p.Email)
	set(&f.Phone, p.Phone)
	set(&f.Address, p.Address)
	set(&f.City, p.City)
	set(&f.State, p.State)
	set(&f.ZipCode, p.ZipCode)
	set(&f.CardNumber, p.CardNumber)
	set(&f.ExpiryDate, p.ExpiryDate)
	set(&f.CVV, p.CVV)
}

// Redacted returns a copy safe to hand back to a client: the card number is
// masked down to its last four characters and the CVV is dropped.
func (f Form) Redacted() Form {
	if n := len(f.CardNumber); n > 4 {
		f.CardNumber = strings.Repeat("*", n-4) + f.CardNumber[n-4:]
	}
	f.CVV = ""
	return f
}

// space is the browser notion of whitespace; RE2's \s is ASCII only.
const space = `\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}`

var (
	emailPattern  = regexp.MustCompile(`^[^` + space + `@]+@[^` + space + `@]+\.[^` + space + `@]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[\d` + space + `-]{10,}$`)
	cardPattern   = regexp.MustCompile(`^\d{16}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3}$`)
)

// rule names double as metric labels.
var ruleMessages = map[string]string{
	"checkout_email":  "Please enter a valid email address",
	"checkout_phone":  "Please enter a valid phone number",
	"checkout_card":   "Please enter a valid 16-digit card number",
	"checkout_expiry": "Please enter a valid expiry date (MM/YY)",
	"checkout_cvv":    "Please enter a valid 3-digit CVV",
}

const emptyCartMessage = "Your cart is empty"

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	patterns := map[string]func(string) bool{
		"checkout_email":  emailPattern.MatchString,
		"checkout_phone":  validPhone,
		"checkout_card":   cardPattern.MatchString,
		"checkout_expiry": expiryPattern.MatchString,
		"checkout_cvv":    cvvPattern.MatchString,
	}
	for tag, match := range patterns {
		// Registration only fails for an empty tag or nil func.
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return match(fl.Field().String())
		})
	}
	return v
}

// validPhone also requires ten actual digits, so "----------" is rejected.
func validPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10
}

// validateForm returns the first failing rule category as a
// *errs.ValidationError. Missing fields are reported together before any
// format rule.
func validateForm(v *validator.Validate, f Form) *errs.ValidationError {
	err := v.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &errs.ValidationError{Field: "form", Rule: "invalid", Message: err.Error()}
	}

	var missing []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return &errs.ValidationError{
			Field:   strings.Join(missing, ","),
			Rule:    "required",
			Message: fmt.Sprintf("Please fill in all required fields: %s", strings.Join(missing, ", ")),
		}
	}

	first := fieldErrs[0]
	return &errs.ValidationError{
		Field:   first.Field(),
		Rule:    first.Tag(),
		Message: ruleMessages[first.Tag()],
	}
}
