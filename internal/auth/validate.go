package auth

import (
	"stockgame/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,max=72"`
}

// ValidateCredentials applies the signup/login input rules.
func ValidateCredentials(email, password string) error {
	err := validate.Struct(credentials{Email: email, Password: password})
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperr.Validation(err.Error())
	}
	switch fe := verrs[0]; {
	case fe.Field() == "Email":
		return apperr.Validation("Please enter a valid email address")
	case fe.Tag() == "max":
		return apperr.Validation("Password must be at most 72 characters long")
	default:
		return apperr.Validation("Password must be at least 6 characters long")
	}
}
