package forms

import (
	"strings"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
)

const (
	MessageRegisterIncomplete = "Provide a name, Noroff email, and a password with at least 8 characters."
	MessagePasswordsMismatch  = "Passwords must match."
	MessageNoroffEmail        = "Use your @stud.noroff.no or @noroff.no email address."
	MessageLoginIncomplete    = "Enter both your email and password."

	MinPasswordLength = 8
)

// RegisterForm is the raw registration form.
type RegisterForm struct {
	Name            string `validate:"required"`
	Email           string `validate:"required,noroff_email"`
	Password        string `validate:"min=8"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

// ValidateRegister checks the form and returns the registration request.
// Completeness is reported first, then the password confirmation, then the
// email domain.
func ValidateRegister(form RegisterForm) (auctionapi.Registration, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)

	collected := collect(validate.Struct(form))
	switch {
	case collected.any("Name"), collected.has("Email", "required"), collected.any("Password"):
		return auctionapi.Registration{}, invalid("password", MessageRegisterIncomplete)
	case collected.any("ConfirmPassword"):
		return auctionapi.Registration{}, invalid("confirmPassword", MessagePasswordsMismatch)
	case collected.any("Email"):
		return auctionapi.Registration{}, invalid("email", MessageNoroffEmail)
	}
	return auctionapi.Registration{Name: form.Name, Email: form.Email, Password: form.Password}, nil
}

// LoginForm is the raw sign-in form.
type LoginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// ValidateLogin trims both fields and requires them.
func ValidateLogin(form LoginForm) (auctionapi.Credentials, error) {
	form.Email = strings.TrimSpace(form.Email)
	form.Password = strings.TrimSpace(form.Password)
	if err := validate.Struct(form); err != nil {
		return auctionapi.Credentials{}, invalid("email", MessageLoginIncomplete)
	}
	return auctionapi.Credentials{Email: form.Email, Password: form.Password}, nil
}
