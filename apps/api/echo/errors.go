package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/wizard"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "invalid credentials")
	errAccountNotVerified   = echo.NewHTTPError(http.StatusForbidden, account.ErrNotVerified.Error())
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errSubmitRetry          = "the application could not be sent, please try again"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var subErr *wizard.SubmissionError
		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			flds, _ := core.FieldErrors(origErr, translator)
			for _, fErr := range flds {
				if _, ok := fldErrs[fErr.Field]; !ok {
					fldErrs[fErr.Field] = fErr.Error
				}
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				message = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch {
			case origErr == wizard.ErrSubmitInFlight:
				code, message = http.StatusConflict, origErr.Error()
			case origErr == wizard.ErrNotLastStep, origErr == wizard.ErrSectionMismatch, origErr == wizard.ErrUnknownSection:
				code, message = http.StatusBadRequest, origErr.Error()
			case origErr == account.ErrNotFound, origErr == application.ErrNotFound:
				code, message = http.StatusNotFound, errHttpNotFound.Message
			case errors.As(err, &subErr):
				code, message = http.StatusBadGateway, errSubmitRetry
				logger.Warn("submitting application", withPrincipal(ctx, subErr.Err)...)
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				logger.Error(msg, withPrincipal(ctx, errors.Wrap(err, msg))...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// withPrincipal appends the request principal, if any, to the logger args.
func withPrincipal(ctx echo.Context, args ...interface{}) []interface{} {
	if p, err := getContextPrincipal(ctx); err == nil {
		args = append(args, p)
	}
	return args
}
