package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/session"
)

type authApi struct {
	svc      *account.Service
	auth     *tokenAuth
	gate     *session.Gate
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, svc *account.Service, auth *tokenAuth, gate *session.Gate, validate *validator.Validate) {
	api := authApi{svc: svc, auth: auth, gate: gate, validate: validate}

	ag := g.Group("/auth")
	ag.POST("/sign-in", api.signIn)
	ag.POST("/sign-up", api.signUp)
	ag.POST("/verify", api.verify)
	ag.POST("/verify/resend", api.resendVerification)
	ag.POST("/sign-out", api.signOut)
	ag.GET("/session", api.session, authRequired)
}

// Handlers

func (api *authApi) signIn(ctx echo.Context) error {
	var data SignInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrInvalidCredentials:
			return errAuthenticationFailed
		case account.ErrNotVerified:
			return errAccountNotVerified
		default:
			return errors.Wrap(err, "authenticating")
		}
	}

	p := acc.Principal()
	claims := api.auth.newClaims(p)
	token, err := api.auth.GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	api.auth.setCookie(ctx, token, time.Unix(claims.ExpiresAt, 0))

	return ctx.JSON(http.StatusOK, SignInResponse{
		Token:       token,
		Principal:   p,
		Destination: api.gate.SafeCallback(data.CallbackURL, p),
	})
}

func (api *authApi) signUp(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}

	acc, err := api.svc.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *authApi) verify(ctx echo.Context) error {
	var data VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.Verify(ctx.Request().Context(), data.Email, data.Token); err != nil {
		if errors.Cause(err) == account.ErrInvalidToken {
			return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
		}
		return errors.Wrap(err, "verifying account")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Your email address has been verified, you can now sign in."})
}

func (api *authApi) resendVerification(ctx echo.Context) error {
	var data ResendVerificationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResendVerificationRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestVerification(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == account.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting verification"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an unverified account, " +
			"an email will arrive in your inbox shortly with a new verification link.",
	})
}

func (api *authApi) signOut(ctx echo.Context) error {
	if claims, err := getContextClaims(ctx); err == nil {
		if err = api.auth.revocations.Revoke(ctx.Request().Context(), claims.Id, time.Unix(claims.ExpiresAt, 0)); err != nil {
			return errors.Wrap(err, "revoking token")
		}
	}
	api.auth.clearCookie(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) session(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}
