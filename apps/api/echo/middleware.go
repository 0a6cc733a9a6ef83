package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core/session"
)

// gateResponse is the API form of a gate redirect.
type gateResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

// gateMiddleware authenticates every request and applies the session.Gate decision.
// Pages are redirected, API calls get a 401/403 JSON body carrying the redirect location.
func gateMiddleware(gate *session.Gate, auth *tokenAuth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := auth.authenticate(ctx)
			if err != nil {
				return errors.Wrap(err, "authenticating request")
			}

			req := ctx.Request()
			d := gate.Decide(req.URL.Path, req.URL.RawQuery, p)
			if d.Allowed() {
				return next(ctx)
			}

			if !isAPIPath(req.URL.Path) {
				return ctx.Redirect(http.StatusFound, d.Location)
			}
			code := http.StatusForbidden
			if d.Reason == session.ReasonUnauthenticated {
				code = http.StatusUnauthorized
			}
			return ctx.JSON(code, gateResponse{Error: d.Reason.String(), Redirect: d.Location})
		}
	}
}

// rolesMiddleware lets through principals holding any of roles.
func rolesMiddleware(roles ...session.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return err
			}
			if p.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// authRequired rejects requests without a principal, for routes open to the gate.
func authRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := getContextPrincipal(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}
