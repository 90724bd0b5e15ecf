package pages

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/forms"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"go.uber.org/zap"
)

const (
	MessageSignedIn              = "Signed in successfully."
	MessageRegistered            = "All set! Redirecting to home..."
	MessageRegisteredNotSignedIn = "Registration succeeded but login failed."
	MessageSignedOut             = "You have been signed out."
	messageLoginFailed           = "Login failed. Please try again."
	messageRegisterFailed        = "Registration failed. Please try again."
)

// Login signs in and redirects to the user's profile.
func (controller *Controller) Login(ctx context.Context, form forms.LoginForm) Result {
	credentials, err := forms.ValidateLogin(form)
	if err != nil {
		return Result{Status: failure(err.Error())}
	}
	auth, err := controller.session.Login(ctx, credentials)
	if err != nil {
		controller.logger.Info("login rejected", zap.Error(err))
		return Result{Status: failure(auctionapi.UserMessage(err, messageLoginFailed))}
	}
	return Result{Status: success(MessageSignedIn), Redirect: chrome.ProfileLink(auth.Name)}
}

// Register creates the account, signs in and redirects home.
func (controller *Controller) Register(ctx context.Context, form forms.RegisterForm) Result {
	registration, err := forms.ValidateRegister(form)
	if err != nil {
		return Result{Status: failure(err.Error())}
	}
	if _, err := controller.session.Register(ctx, registration); err != nil {
		if errors.Is(err, session.ErrRegisteredButNotSignedIn) {
			return Result{Status: failure(MessageRegisteredNotSignedIn), Redirect: "/login"}
		}
		controller.logger.Info("registration rejected", zap.Error(err))
		return Result{Status: failure(auctionapi.UserMessage(err, messageRegisterFailed))}
	}
	return Result{Status: success(MessageRegistered), Redirect: "/"}
}

// Logout clears the session.
func (controller *Controller) Logout(ctx context.Context) Result {
	if err := controller.session.Logout(ctx); err != nil {
		controller.logger.Warn("logout left state behind", zap.Error(err))
	}
	return Result{Status: info(MessageSignedOut), Redirect: "/"}
}
