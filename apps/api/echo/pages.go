package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jobify/jobify/core/session"
)

// registerPages serves the JSON stand-ins of the frontend pages. Access is decided by the gate.
func registerPages(app *echo.Echo) {
	app.GET("/", page("home"))
	app.GET(session.SignInPath, page("sign-in"))
	app.GET(session.SignUpPath, page("sign-up"))
	app.GET(session.VerifyPath, page("verify"))

	app.GET(session.DefaultDestination, page("dashboard"))
	app.GET(session.Destination(session.RoleAdmin), page("admin-dashboard"))
	app.GET(session.Destination(session.RoleSchool), page("school-dashboard"))
	app.GET(session.Destination(session.RoleTutor), page("tutor-dashboard"))

	app.GET("/health", health)
}

func page(name string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		resp := PageResponse{Page: name}
		if p, err := getContextPrincipal(ctx); err == nil {
			resp.Principal = &p
		}
		return ctx.JSON(http.StatusOK, resp)
	}
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
