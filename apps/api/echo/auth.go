package echoapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/session"
)

var (
	contextPrincipalKey = "principal"
	contextClaimsKey    = "claims"
	contextTokenKey     = "token"

	errInvalidToken = errors.New("invalid token")
	errTokenRevoked = errors.New("token revoked")
)

// Claims represents the authorization claims transmitted via a JWT.
// Id is the token id used for revocation and Subject the account id.
type Claims struct {
	jwt.StandardClaims
	Role       session.Role `json:"role"`
	IsVerified bool         `json:"is_verified"`
	Name       string       `json:"name,omitempty"`
}

func (c Claims) Principal() session.Principal {
	return session.Principal{ID: c.Subject, Role: c.Role, IsVerified: c.IsVerified, Name: c.Name}
}

// tokenAuth issues and verifies session tokens.
type tokenAuth struct {
	secretKey   []byte
	issuer      string
	expiration  time.Duration
	cookieName  string
	secure      bool
	revocations session.RevocationList
	nowFunc     func() time.Time // mockable
}

func newTokenAuth(conf *core.Config, revocations session.RevocationList) *tokenAuth {
	return &tokenAuth{
		secretKey:   []byte(conf.SecretKey),
		issuer:      conf.AppName,
		expiration:  conf.JWTExpirationDelta,
		cookieName:  conf.SessionCookieName,
		secure:      !(conf.Debug || conf.TestMode),
		revocations: revocations,
		nowFunc:     time.Now,
	}
}

func (a *tokenAuth) newClaims(p session.Principal) *Claims {
	now := a.nowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    a.issuer,
			Subject:   p.ID,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role:       p.Role,
		IsVerified: p.IsVerified,
		Name:       p.Name,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (a *tokenAuth) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken checks the token signature, expiry and revocation.
func (a *tokenAuth) parseToken(ctx context.Context, raw string) (*Claims, error) {
	claims := new(Claims)
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secretKey, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	if claims.Id != "" {
		revoked, err := a.revocations.IsRevoked(ctx, claims.Id)
		if err != nil {
			return nil, errors.Wrap(err, "checking revocation list")
		}
		if revoked {
			return nil, errTokenRevoked
		}
	}
	return claims, nil
}

// tokensFromRequest returns the session cookie token, then the Authorization bearer token.
func (a *tokenAuth) tokensFromRequest(req *http.Request) []string {
	var tokens []string
	if c, err := req.Cookie(a.cookieName); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	if auth := req.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if raw := strings.TrimSpace(auth[len("Bearer "):]); raw != "" {
			tokens = append(tokens, raw)
		}
	}
	return tokens
}

// authenticate puts the request principal in the echo.Context.
// The first token that verifies wins. No verified token means no principal.
func (a *tokenAuth) authenticate(ctx echo.Context) (*session.Principal, error) {
	for _, raw := range a.tokensFromRequest(ctx.Request()) {
		claims, err := a.parseToken(ctx.Request().Context(), raw)
		if err != nil {
			if errors.Cause(err) == errInvalidToken || errors.Cause(err) == errTokenRevoked {
				continue
			}
			return nil, err
		}
		p := claims.Principal()
		ctx.Set(contextClaimsKey, claims)
		ctx.Set(contextTokenKey, raw)
		ctx.Set(contextPrincipalKey, p)
		return &p, nil
	}
	return nil, nil
}

func (a *tokenAuth) setCookie(ctx echo.Context, token string, expires time.Time) {
	ctx.SetCookie(&http.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *tokenAuth) clearCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func getContextPrincipal(ctx echo.Context) (session.Principal, error) {
	if p, ok := ctx.Get(contextPrincipalKey).(session.Principal); ok {
		return p, nil
	}
	return session.Principal{}, errUnauthorized
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}

func getContextToken(ctx echo.Context) string {
	token, _ := ctx.Get(contextTokenKey).(string)
	return token
}
