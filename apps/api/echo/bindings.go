package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/core/wizard"
)

type (
	SignInRequest struct {
		Email       string `json:"email" validate:"required,email"`
		Password    string `json:"password" validate:"required"`
		CallbackURL string `json:"callbackUrl"`
	}

	SignInResponse struct {
		Token       string            `json:"token"`
		Principal   session.Principal `json:"principal"`
		Destination string            `json:"destination"`
	}

	VerifyRequest struct {
		Email string `json:"email" validate:"required,email"`
		Token string `json:"token" validate:"required"`
	}

	ResendVerificationRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	PageResponse struct {
		Page      string             `json:"page"`
		Principal *session.Principal `json:"principal,omitempty"`
	}

	// TransitionRequest carries the values typed on the current step. Section defaults to the current step's.
	TransitionRequest struct {
		Section wizard.Section  `json:"section"`
		Values  json.RawMessage `json:"values"`
		Step    int             `json:"step"` // jump only
	}
)

func (r *SignInRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

func (r *VerifyRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.Token = core.CleanString(r.Token)
	return validate.Struct(r)
}

func (r *ResendVerificationRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

// values decodes the request values for section, or the current section when unset. No values means nil.
func (r TransitionRequest) values(current wizard.Section) (wizard.Values, error) {
	if len(r.Values) == 0 || string(r.Values) == "null" {
		return nil, nil
	}
	s := r.Section
	if s == "" {
		s = current
	}
	if !s.IsValid() {
		return nil, errors.Wrap(wizard.ErrUnknownSection, string(s))
	}
	values, err := wizard.DecodeValues(s, r.Values)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed values").SetInternal(err)
	}
	return values, nil
}

// bindQueryFilter reads the application listing filters from the query string.
func bindQueryFilter(ctx echo.Context) application.QueryFilter {
	return application.QueryFilter{
		JobPreference: ctx.QueryParam("job_preference"),
		Search:        ctx.QueryParam("search"),
	}
}
