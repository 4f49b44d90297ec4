package middleware

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator registers custom validation rules on gin's binding
// validator. Must be called once before the engine handles requests.
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// "country_code" is a built-in alias in validator/v10
		// (iso3166_1 alpha-2/alpha-3/numeric) and aliases shadow
		// registered functions, so register under a distinct name and
		// re-point the alias at it.
		_ = v.RegisterValidation("country_code_alpha2_upper", validateCountryCode)
		v.RegisterAlias("country_code", "country_code_alpha2_upper")
	}
}

// validateCountryCode accepts two-letter uppercase ISO 3166-1 codes.
// The supplier API is case-sensitive about these.
func validateCountryCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
